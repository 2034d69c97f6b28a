package repository

import (
	"context"
	"errors"
	"time"

	"agriconecta-api/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type OrderFilter struct {
	State model.OrderState
	Page  Page
}

// StateUpdate describe los campos que cambian en una transición.
// Los timestamps nil no se tocan.
type StateUpdate struct {
	State       model.OrderState
	PaidAt      *time.Time
	ShippedAt   *time.Time
	DeliveredAt *time.Time
	Entry       model.HistoryEntry

	// Datos de pago que viajan con la transición; vacíos no se tocan.
	PaymentReference string
	ProofDocumentRef string
}

// Mongo implementation
type MongoOrderRepository struct {
	col *mongo.Collection
	now func() time.Time
}

func NewMongoOrderRepository(db *mongo.Database) *MongoOrderRepository {
	return &MongoOrderRepository{
		col: db.Collection("orders"),
		now: func() time.Time { return time.Now().UTC() },
	}
}

func (m *MongoOrderRepository) EnsureIndexes(ctx context.Context) error {
	_, err := m.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "number", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "tracking_code", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "state", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "created_at", Value: 1}}},
	})
	return err
}

// Create inserta pedido, items e historial en un solo documento: la escritura es atómica.
func (m *MongoOrderRepository) Create(ctx context.Context, o *model.Order) error {
	if len(o.History) == 0 {
		return ErrMissingHistory
	}
	o.RecalculateTotals()
	o.AddressText = o.Address.Serialize()
	if o.UpdatedAt.IsZero() {
		o.UpdatedAt = m.now()
	}
	o.Version = 1

	_, err := m.col.InsertOne(ctx, o)
	return translateWriteErr(err)
}

func (m *MongoOrderRepository) FindByID(ctx context.Context, id string) (*model.Order, error) {
	return m.findOne(ctx, bson.M{"_id": id})
}

func (m *MongoOrderRepository) FindByTrackingCode(ctx context.Context, code string) (*model.Order, error) {
	return m.findOne(ctx, bson.M{"tracking_code": code})
}

func (m *MongoOrderRepository) findOne(ctx context.Context, filter bson.M) (*model.Order, error) {
	var res model.Order
	err := m.col.FindOne(ctx, filter).Decode(&res)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// List devuelve una página ordenada por fecha de creación descendente y el total filtrado.
func (m *MongoOrderRepository) List(ctx context.Context, f OrderFilter) ([]*model.Order, int64, error) {
	filter := buildOrderListFilter(f)

	total, err := m.col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(f.Page.skip()).
		SetLimit(f.Page.limit())

	cur, err := m.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cur.Close(ctx)

	out := make([]*model.Order, 0)
	for cur.Next(ctx) {
		var v model.Order
		if err := cur.Decode(&v); err != nil {
			return nil, 0, err
		}
		out = append(out, &v)
	}
	return out, total, cur.Err()
}

// FindCreatedBetween devuelve los pedidos con created_at en [start, end], en orden cronológico.
func (m *MongoOrderRepository) FindCreatedBetween(ctx context.Context, start, end time.Time) ([]*model.Order, error) {
	filter := bson.M{"created_at": bson.M{"$gte": start, "$lte": end}}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})

	cur, err := m.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := make([]*model.Order, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CountByState agrupa todos los pedidos por estado.
func (m *MongoOrderRepository) CountByState(ctx context.Context) (map[model.OrderState]int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{{Key: "_id", Value: "$state"}, {Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}}}}},
	}
	cur, err := m.col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := make(map[model.OrderState]int64, len(model.AllStates))
	for cur.Next(ctx) {
		var row struct {
			State model.OrderState `bson:"_id"`
			Count int64            `bson:"count"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, err
		}
		out[row.State] = row.Count
	}
	return out, cur.Err()
}

// UpdateState aplica la transición si la versión coincide y devuelve el documento actualizado.
func (m *MongoOrderRepository) UpdateState(ctx context.Context, id string, expectedVersion int64, u StateUpdate) (*model.Order, error) {
	return m.conditionalUpdate(ctx, id, expectedVersion, buildStateUpdate(u, m.now()))
}

// AppendHistory agrega una nota al historial sin cambiar el estado.
func (m *MongoOrderRepository) AppendHistory(ctx context.Context, id string, expectedVersion int64, entry model.HistoryEntry) (*model.Order, error) {
	update := bson.M{
		"$set":  bson.M{"updated_at": m.now()},
		"$push": bson.M{"history": entry},
		"$inc":  bson.M{"version": 1},
	}
	return m.conditionalUpdate(ctx, id, expectedVersion, update)
}

func (m *MongoOrderRepository) UpdatePayment(ctx context.Context, id string, expectedVersion int64, reference, proofRef string) (*model.Order, error) {
	return m.conditionalUpdate(ctx, id, expectedVersion, buildPaymentUpdate(reference, proofRef, m.now()))
}

func (m *MongoOrderRepository) conditionalUpdate(ctx context.Context, id string, expectedVersion int64, update bson.M) (*model.Order, error) {
	filter := bson.M{"_id": id, "version": expectedVersion}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var res model.Order
	err := m.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&res)
	if errors.Is(err, mongo.ErrNoDocuments) {
		// ¿No existe o cambió la versión?
		n, cErr := m.col.CountDocuments(ctx, bson.M{"_id": id})
		if cErr != nil {
			return nil, cErr
		}
		if n == 0 {
			return nil, ErrNotFound
		}
		return nil, ErrVersionConflict
	}
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func buildOrderListFilter(f OrderFilter) bson.M {
	filter := bson.M{}
	if f.State != "" {
		filter["state"] = f.State
	}
	return filter
}

func buildStateUpdate(u StateUpdate, now time.Time) bson.M {
	set := bson.M{
		"state":      u.State,
		"updated_at": now,
	}
	if u.PaidAt != nil {
		set["paid_at"] = *u.PaidAt
	}
	if u.ShippedAt != nil {
		set["shipped_at"] = *u.ShippedAt
	}
	if u.DeliveredAt != nil {
		set["delivered_at"] = *u.DeliveredAt
	}
	if u.PaymentReference != "" {
		set["payment_reference"] = u.PaymentReference
	}
	if u.ProofDocumentRef != "" {
		set["payment_proof_ref"] = u.ProofDocumentRef
	}
	return bson.M{
		"$set":  set,
		"$push": bson.M{"history": u.Entry},
		"$inc":  bson.M{"version": 1},
	}
}

func buildPaymentUpdate(reference, proofRef string, now time.Time) bson.M {
	set := bson.M{"updated_at": now}
	if reference != "" {
		set["payment_reference"] = reference
	}
	if proofRef != "" {
		set["payment_proof_ref"] = proofRef
	}
	return bson.M{
		"$set": set,
		"$inc": bson.M{"version": 1},
	}
}
