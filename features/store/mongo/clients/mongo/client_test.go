package mongo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sadadonline17-oss/ai-manus-unified/runtime/workflow"
)

type fakeCollection struct {
	findOneDoc *workflowDocument
	findOneErr error
	findDocs   []workflowDocument
	findErr    error
	findOpts   []*options.FindOptions

	updateFilter any
	updateUpdate any
	updateOpts   []*options.UpdateOptions

	deleteFilter any
	deleteCount  int64

	indexes fakeIndexView
}

func (c *fakeCollection) FindOne(_ context.Context, filter any, _ ...*options.FindOneOptions) singleResult {
	return fakeSingleResult{doc: c.findOneDoc, err: c.findOneErr}
}

func (c *fakeCollection) Find(_ context.Context, filter any, opts ...*options.FindOptions) (cursor, error) {
	if c.findErr != nil {
		return nil, c.findErr
	}
	c.findOpts = opts
	return &fakeCursor{docs: c.findDocs}, nil
}

func (c *fakeCollection) UpdateOne(_ context.Context, filter any, update any,
	opts ...*options.UpdateOptions) (*mongodriver.UpdateResult, error) {
	c.updateFilter = filter
	c.updateUpdate = update
	c.updateOpts = opts
	return &mongodriver.UpdateResult{UpsertedCount: 1}, nil
}

func (c *fakeCollection) DeleteOne(_ context.Context, filter any,
	_ ...*options.DeleteOptions) (*mongodriver.DeleteResult, error) {
	c.deleteFilter = filter
	return &mongodriver.DeleteResult{DeletedCount: c.deleteCount}, nil
}

func (c *fakeCollection) Indexes() indexView {
	return &c.indexes
}

type fakeSingleResult struct {
	doc *workflowDocument
	err error
}

func (r fakeSingleResult) Decode(val any) error {
	if r.err != nil {
		return r.err
	}
	*val.(*workflowDocument) = *r.doc
	return nil
}

type fakeCursor struct {
	docs []workflowDocument
	pos  int
}

func (c *fakeCursor) Next(context.Context) bool {
	if c.pos >= len(c.docs) {
		return false
	}
	c.pos++
	return true
}

func (c *fakeCursor) Decode(val any) error {
	*val.(*workflowDocument) = c.docs[c.pos-1]
	return nil
}

func (c *fakeCursor) Close(context.Context) error { return nil }
func (c *fakeCursor) Err() error                  { return nil }

type fakeIndexView struct {
	models []mongodriver.IndexModel
}

func (v *fakeIndexView) CreateOne(_ context.Context, model mongodriver.IndexModel,
	_ ...*options.CreateIndexesOptions) (string, error) {
	v.models = append(v.models, model)
	return "", nil
}

func newTestClient(t *testing.T, coll *fakeCollection) *client {
	t.Helper()
	c, err := newClientWithCollection(nil, coll, time.Second)
	require.NoError(t, err)
	return c
}

func TestNewClientRequiresCollection(t *testing.T) {
	_, err := newClientWithCollection(nil, nil, time.Second)
	require.EqualError(t, err, "collection is required")
}

func TestNewRequiresClientAndDatabase(t *testing.T) {
	_, err := New(Options{})
	require.EqualError(t, err, "mongo client is required")

	_, err = New(Options{Client: &mongodriver.Client{}})
	require.EqualError(t, err, "database name is required")
}

func TestClientName(t *testing.T) {
	c := newTestClient(t, &fakeCollection{})
	require.Equal(t, "workflow-mongo", c.Name())
}

func TestUpsertWorkflow(t *testing.T) {
	coll := &fakeCollection{}
	c := newTestClient(t, coll)

	w := &workflow.Workflow{
		ID:       "workflow_1",
		Name:     "persisted",
		Nodes:    []*workflow.Node{{ID: "t", Type: workflow.NodeTypeTrigger}},
		Triggers: []string{"t"},
	}
	require.NoError(t, c.UpsertWorkflow(context.Background(), w))

	require.Equal(t, bson.M{"workflow_id": "workflow_1"}, coll.updateFilter)

	update, ok := coll.updateUpdate.(bson.M)
	require.True(t, ok)
	set, ok := update["$set"].(bson.M)
	require.True(t, ok)
	require.Equal(t, "workflow_1", set["workflow_id"])
	require.Equal(t, "persisted", set["name"])

	onInsert, ok := update["$setOnInsert"].(bson.M)
	require.True(t, ok)
	createdAt, ok := onInsert["created_at"].(time.Time)
	require.True(t, ok)
	require.False(t, createdAt.IsZero())

	require.Len(t, coll.updateOpts, 1)
	require.NotNil(t, coll.updateOpts[0].Upsert)
	require.True(t, *coll.updateOpts[0].Upsert)
}

func TestUpsertWorkflowValidation(t *testing.T) {
	c := newTestClient(t, &fakeCollection{})

	require.EqualError(t, c.UpsertWorkflow(context.Background(), nil), "workflow is required")
	require.EqualError(t, c.UpsertWorkflow(context.Background(), &workflow.Workflow{}), "workflow id is required")
}

func TestLoadWorkflow(t *testing.T) {
	coll := &fakeCollection{
		findOneDoc: &workflowDocument{
			WorkflowID: "workflow_1",
			Name:       "loaded",
			Nodes:      []*workflow.Node{{ID: "t", Type: workflow.NodeTypeTrigger}},
			CreatedAt:  time.Now().UTC(),
		},
	}
	c := newTestClient(t, coll)

	w, err := c.LoadWorkflow(context.Background(), "workflow_1")
	require.NoError(t, err)
	require.Equal(t, "workflow_1", w.ID)
	require.Equal(t, "loaded", w.Name)
	require.Len(t, w.Nodes, 1)
}

func TestLoadWorkflowAbsent(t *testing.T) {
	c := newTestClient(t, &fakeCollection{findOneErr: mongodriver.ErrNoDocuments})

	w, err := c.LoadWorkflow(context.Background(), "workflow_missing")
	require.NoError(t, err)
	require.Nil(t, w)

	_, err = c.LoadWorkflow(context.Background(), "")
	require.EqualError(t, err, "workflow id is required")
}

func TestDeleteWorkflow(t *testing.T) {
	coll := &fakeCollection{deleteCount: 1}
	c := newTestClient(t, coll)

	deleted, err := c.DeleteWorkflow(context.Background(), "workflow_1")
	require.NoError(t, err)
	require.True(t, deleted)
	require.Equal(t, bson.M{"workflow_id": "workflow_1"}, coll.deleteFilter)

	coll.deleteCount = 0
	deleted, err = c.DeleteWorkflow(context.Background(), "workflow_1")
	require.NoError(t, err)
	require.False(t, deleted)
}

func TestListWorkflows(t *testing.T) {
	coll := &fakeCollection{
		findDocs: []workflowDocument{
			{WorkflowID: "workflow_a", Name: "first"},
			{WorkflowID: "workflow_b", Name: "second"},
		},
	}
	c := newTestClient(t, coll)

	workflows, err := c.ListWorkflows(context.Background())
	require.NoError(t, err)
	require.Len(t, workflows, 2)
	require.Equal(t, "workflow_a", workflows[0].ID)
	require.Equal(t, "workflow_b", workflows[1].ID)

	require.Len(t, coll.findOpts, 1)
	require.Equal(t, bson.D{{Key: "created_at", Value: 1}}, coll.findOpts[0].Sort)
}

func TestEnsureIndexes(t *testing.T) {
	coll := &fakeCollection{}
	require.NoError(t, ensureIndexes(context.Background(), coll))

	require.Len(t, coll.indexes.models, 2)
	require.Equal(t, bson.D{{Key: "workflow_id", Value: 1}}, coll.indexes.models[0].Keys)
	require.NotNil(t, coll.indexes.models[0].Options)
	require.True(t, *coll.indexes.models[0].Options.Unique)
	require.Equal(t, bson.D{{Key: "created_at", Value: 1}}, coll.indexes.models[1].Keys)
}

func TestDocumentRoundTrip(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Millisecond)
	w := &workflow.Workflow{
		ID:        "workflow_1",
		Name:      "round trip",
		Nodes:     []*workflow.Node{{ID: "t", Type: workflow.NodeTypeTrigger}},
		Triggers:  []string{"t"},
		CreatedAt: now,
		UpdatedAt: now,
	}

	doc := fromWorkflow(w)
	require.Equal(t, "workflow_1", doc.WorkflowID)
	require.Equal(t, now, doc.CreatedAt)

	back := doc.toWorkflow()
	require.Equal(t, w.ID, back.ID)
	require.Equal(t, w.Name, back.Name)
	require.Equal(t, w.Triggers, back.Triggers)
}

func TestFromWorkflowFillsTimestamps(t *testing.T) {
	doc := fromWorkflow(&workflow.Workflow{ID: "workflow_1", Name: "fresh"})
	require.False(t, doc.CreatedAt.IsZero())
	require.Equal(t, doc.CreatedAt, doc.UpdatedAt)
}
