// Package mongo hosts the MongoDB client used by the workflow store.
package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"goa.design/clue/health"

	"github.com/sadadonline17-oss/ai-manus-unified/runtime/workflow"
)

const (
	defaultWorkflowsCollection = "workflows"
	defaultOpTimeout           = 5 * time.Second
	workflowClientName         = "workflow-mongo"
)

// Client exposes Mongo-backed operations for workflow documents.
type Client interface {
	health.Pinger

	UpsertWorkflow(ctx context.Context, w *workflow.Workflow) error
	LoadWorkflow(ctx context.Context, workflowID string) (*workflow.Workflow, error)
	DeleteWorkflow(ctx context.Context, workflowID string) (bool, error)
	ListWorkflows(ctx context.Context) ([]*workflow.Workflow, error)
}

// Options configures the Mongo workflow client.
type Options struct {
	Client     *mongodriver.Client
	Database   string
	Collection string
	Timeout    time.Duration
}

type client struct {
	mongo     *mongodriver.Client
	workflows collection
	timeout   time.Duration
}

// New returns a Client backed by MongoDB.
func New(opts Options) (Client, error) {
	if opts.Client == nil {
		return nil, errors.New("mongo client is required")
	}
	if opts.Database == "" {
		return nil, errors.New("database name is required")
	}
	collName := opts.Collection
	if collName == "" {
		collName = defaultWorkflowsCollection
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultOpTimeout
	}
	coll := opts.Client.Database(opts.Database).Collection(collName)
	wrapper := mongoCollection{coll: coll}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := ensureIndexes(ctx, wrapper); err != nil {
		return nil, err
	}
	return newClientWithCollection(opts.Client, wrapper, timeout)
}

func (c *client) Name() string {
	return workflowClientName
}

func (c *client) Ping(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return c.mongo.Ping(ctx, readpref.Primary())
}

func (c *client) UpsertWorkflow(ctx context.Context, w *workflow.Workflow) error {
	if w == nil {
		return errors.New("workflow is required")
	}
	if w.ID == "" {
		return errors.New("workflow id is required")
	}
	doc := fromWorkflow(w)
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	filter := bson.M{"workflow_id": w.ID}
	update := bson.M{
		"$set": bson.M{
			"workflow_id": doc.WorkflowID,
			"name":        doc.Name,
			"description": doc.Description,
			"nodes":       doc.Nodes,
			"edges":       doc.Edges,
			"triggers":    doc.Triggers,
			"settings":    doc.Settings,
			"updated_at":  doc.UpdatedAt,
		},
		"$setOnInsert": bson.M{
			"created_at": doc.CreatedAt,
		},
	}
	_, err := c.workflows.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	return err
}

func (c *client) LoadWorkflow(ctx context.Context, workflowID string) (*workflow.Workflow, error) {
	if workflowID == "" {
		return nil, errors.New("workflow id is required")
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	filter := bson.M{"workflow_id": workflowID}
	var doc workflowDocument
	if err := c.workflows.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return doc.toWorkflow(), nil
}

func (c *client) DeleteWorkflow(ctx context.Context, workflowID string) (bool, error) {
	if workflowID == "" {
		return false, errors.New("workflow id is required")
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	res, err := c.workflows.DeleteOne(ctx, bson.M{"workflow_id": workflowID})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}

func (c *client) ListWorkflows(ctx context.Context) ([]*workflow.Workflow, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	cur, err := c.workflows.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = cur.Close(ctx)
	}()
	var out []*workflow.Workflow
	for cur.Next(ctx) {
		var doc workflowDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.toWorkflow())
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if c.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

type workflowDocument struct {
	WorkflowID  string           `bson:"workflow_id"`
	Name        string           `bson:"name"`
	Description string           `bson:"description,omitempty"`
	Nodes       []*workflow.Node `bson:"nodes"`
	Edges       []workflow.Edge  `bson:"edges"`
	Triggers    []string         `bson:"triggers,omitempty"`
	Settings    map[string]any   `bson:"settings,omitempty"`
	CreatedAt   time.Time        `bson:"created_at"`
	UpdatedAt   time.Time        `bson:"updated_at"`
}

func fromWorkflow(w *workflow.Workflow) workflowDocument {
	cp := w.Clone()
	createdAt := cp.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	updatedAt := cp.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}
	return workflowDocument{
		WorkflowID:  cp.ID,
		Name:        cp.Name,
		Description: cp.Description,
		Nodes:       cp.Nodes,
		Edges:       cp.Edges,
		Triggers:    cp.Triggers,
		Settings:    cp.Settings,
		CreatedAt:   createdAt.UTC(),
		UpdatedAt:   updatedAt.UTC(),
	}
}

func (doc workflowDocument) toWorkflow() *workflow.Workflow {
	w := workflow.Workflow{
		ID:          doc.WorkflowID,
		Name:        doc.Name,
		Description: doc.Description,
		Nodes:       doc.Nodes,
		Edges:       doc.Edges,
		Triggers:    doc.Triggers,
		Settings:    doc.Settings,
		CreatedAt:   doc.CreatedAt,
		UpdatedAt:   doc.UpdatedAt,
	}
	return w.Clone()
}

func ensureIndexes(ctx context.Context, workflowsColl collection) error {
	workflowIndex := mongodriver.IndexModel{
		Keys:    bson.D{{Key: "workflow_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	if _, err := workflowsColl.Indexes().CreateOne(ctx, workflowIndex); err != nil {
		return err
	}
	createdIndex := mongodriver.IndexModel{
		Keys: bson.D{{Key: "created_at", Value: 1}},
	}
	if _, err := workflowsColl.Indexes().CreateOne(ctx, createdIndex); err != nil {
		return err
	}
	return nil
}

func newClientWithCollection(mongoClient *mongodriver.Client, workflowsColl collection, timeout time.Duration) (*client, error) {
	if workflowsColl == nil {
		return nil, errors.New("collection is required")
	}
	if timeout <= 0 {
		timeout = defaultOpTimeout
	}
	return &client{
		mongo:     mongoClient,
		workflows: workflowsColl,
		timeout:   timeout,
	}, nil
}

type collection interface {
	FindOne(ctx context.Context, filter any, opts ...*options.FindOneOptions) singleResult
	Find(ctx context.Context, filter any, opts ...*options.FindOptions) (cursor, error)
	UpdateOne(ctx context.Context, filter any, update any,
		opts ...*options.UpdateOptions) (*mongodriver.UpdateResult, error)
	DeleteOne(ctx context.Context, filter any,
		opts ...*options.DeleteOptions) (*mongodriver.DeleteResult, error)
	Indexes() indexView
}

type indexView interface {
	CreateOne(ctx context.Context, model mongodriver.IndexModel,
		opts ...*options.CreateIndexesOptions) (string, error)
}

type singleResult interface {
	Decode(val any) error
}

type cursor interface {
	Close(ctx context.Context) error
	Decode(val any) error
	Err() error
	Next(ctx context.Context) bool
}

type mongoCollection struct {
	coll *mongodriver.Collection
}

func (c mongoCollection) FindOne(ctx context.Context, filter any, opts ...*options.FindOneOptions) singleResult {
	return mongoSingleResult{res: c.coll.FindOne(ctx, filter, opts...)}
}

func (c mongoCollection) Find(ctx context.Context, filter any, opts ...*options.FindOptions) (cursor, error) {
	cur, err := c.coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	return mongoCursor{cur: cur}, nil
}

func (c mongoCollection) UpdateOne(ctx context.Context, filter any, update any,
	opts ...*options.UpdateOptions) (*mongodriver.UpdateResult, error) {
	return c.coll.UpdateOne(ctx, filter, update, opts...)
}

func (c mongoCollection) DeleteOne(ctx context.Context, filter any,
	opts ...*options.DeleteOptions) (*mongodriver.DeleteResult, error) {
	return c.coll.DeleteOne(ctx, filter, opts...)
}

func (c mongoCollection) Indexes() indexView {
	return mongoIndexView{view: c.coll.Indexes()}
}

type mongoSingleResult struct {
	res *mongodriver.SingleResult
}

func (r mongoSingleResult) Decode(val any) error {
	return r.res.Decode(val)
}

type mongoCursor struct {
	cur *mongodriver.Cursor
}

func (c mongoCursor) Close(ctx context.Context) error {
	return c.cur.Close(ctx)
}

func (c mongoCursor) Decode(val any) error {
	return c.cur.Decode(val)
}

func (c mongoCursor) Err() error {
	return c.cur.Err()
}

func (c mongoCursor) Next(ctx context.Context) bool {
	return c.cur.Next(ctx)
}

type mongoIndexView struct {
	view mongodriver.IndexView
}

func (v mongoIndexView) CreateOne(ctx context.Context, model mongodriver.IndexModel,
	opts ...*options.CreateIndexesOptions) (string, error) {
	return v.view.CreateOne(ctx, model, opts...)
}
