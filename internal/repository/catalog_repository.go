package repository

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"agriconecta-api/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var catalogSort = bson.D{{Key: "sort_order", Value: 1}, {Key: "name", Value: 1}}

type MongoCategoryRepository struct {
	col *mongo.Collection
}

func NewMongoCategoryRepository(db *mongo.Database) *MongoCategoryRepository {
	return &MongoCategoryRepository{col: db.Collection("categories")}
}

func (m *MongoCategoryRepository) EnsureIndexes(ctx context.Context) error {
	_, err := m.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "slug", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

func (m *MongoCategoryRepository) Create(ctx context.Context, c *model.Category) error {
	_, err := m.col.InsertOne(ctx, c)
	return translateWriteErr(err)
}

func (m *MongoCategoryRepository) Update(ctx context.Context, c *model.Category) error {
	res, err := m.col.ReplaceOne(ctx, bson.M{"_id": c.ID}, c)
	if err != nil {
		return translateWriteErr(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *MongoCategoryRepository) Delete(ctx context.Context, id string) error {
	res, err := m.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *MongoCategoryRepository) FindByID(ctx context.Context, id string) (*model.Category, error) {
	return m.findOne(ctx, bson.M{"_id": id})
}

func (m *MongoCategoryRepository) FindBySlug(ctx context.Context, slug string) (*model.Category, error) {
	return m.findOne(ctx, bson.M{"slug": slug})
}

func (m *MongoCategoryRepository) findOne(ctx context.Context, filter bson.M) (*model.Category, error) {
	var res model.Category
	err := m.col.FindOne(ctx, filter).Decode(&res)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (m *MongoCategoryRepository) List(ctx context.Context, activeOnly bool) ([]*model.Category, error) {
	filter := bson.M{}
	if activeOnly {
		filter["active"] = true
	}
	cur, err := m.col.Find(ctx, filter, options.Find().SetSort(catalogSort))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := make([]*model.Category, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SlugExists ignora el documento excludeID (para updates).
func (m *MongoCategoryRepository) SlugExists(ctx context.Context, slug, excludeID string) (bool, error) {
	return slugExists(ctx, m.col, slug, excludeID)
}

type ProductFilter struct {
	CategoryID string
	ActiveOnly bool
	Featured   *bool
	Search     string
	Page       Page
}

type MongoProductRepository struct {
	col *mongo.Collection
}

func NewMongoProductRepository(db *mongo.Database) *MongoProductRepository {
	return &MongoProductRepository{col: db.Collection("products")}
}

func (m *MongoProductRepository) EnsureIndexes(ctx context.Context) error {
	_, err := m.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "slug", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "category_id", Value: 1}}},
		{Keys: bson.D{{Key: "active", Value: 1}, {Key: "featured", Value: 1}}},
	})
	return err
}

func (m *MongoProductRepository) Create(ctx context.Context, p *model.Product) error {
	_, err := m.col.InsertOne(ctx, p)
	return translateWriteErr(err)
}

func (m *MongoProductRepository) Update(ctx context.Context, p *model.Product) error {
	res, err := m.col.ReplaceOne(ctx, bson.M{"_id": p.ID}, p)
	if err != nil {
		return translateWriteErr(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *MongoProductRepository) Delete(ctx context.Context, id string) error {
	res, err := m.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *MongoProductRepository) FindByID(ctx context.Context, id string) (*model.Product, error) {
	return m.findOne(ctx, bson.M{"_id": id})
}

func (m *MongoProductRepository) FindBySlug(ctx context.Context, slug string) (*model.Product, error) {
	return m.findOne(ctx, bson.M{"slug": slug})
}

func (m *MongoProductRepository) findOne(ctx context.Context, filter bson.M) (*model.Product, error) {
	var res model.Product
	err := m.col.FindOne(ctx, filter).Decode(&res)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// FindByIDs devuelve los productos encontrados indexados por id.
func (m *MongoProductRepository) FindByIDs(ctx context.Context, ids []string) (map[string]*model.Product, error) {
	cur, err := m.col.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := make(map[string]*model.Product, len(ids))
	for cur.Next(ctx) {
		var p model.Product
		if err := cur.Decode(&p); err != nil {
			return nil, err
		}
		out[p.ID] = &p
	}
	return out, cur.Err()
}

func (m *MongoProductRepository) List(ctx context.Context, f ProductFilter) ([]*model.Product, int64, error) {
	filter := buildProductFilter(f)

	total, err := m.col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().
		SetSort(catalogSort).
		SetSkip(f.Page.skip()).
		SetLimit(f.Page.limit())
	cur, err := m.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cur.Close(ctx)

	out := make([]*model.Product, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (m *MongoProductRepository) CountByCategory(ctx context.Context, categoryID string) (int64, error) {
	return m.col.CountDocuments(ctx, bson.M{"category_id": categoryID})
}

func (m *MongoProductRepository) CountActive(ctx context.Context) (int64, error) {
	return m.col.CountDocuments(ctx, bson.M{"active": true})
}

// FindLowStock lista productos activos con stock <= threshold, los más escasos primero.
func (m *MongoProductRepository) FindLowStock(ctx context.Context, threshold int, limit int64) ([]*model.Product, error) {
	opts := options.Find().SetSort(bson.D{{Key: "stock", Value: 1}}).SetLimit(limit)
	cur, err := m.col.Find(ctx, bson.M{"active": true, "stock": bson.M{"$lte": threshold}}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := make([]*model.Product, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (m *MongoProductRepository) SlugExists(ctx context.Context, slug, excludeID string) (bool, error) {
	return slugExists(ctx, m.col, slug, excludeID)
}

func buildProductFilter(f ProductFilter) bson.M {
	filter := bson.M{}
	if f.CategoryID != "" {
		filter["category_id"] = f.CategoryID
	}
	if f.ActiveOnly {
		filter["active"] = true
	}
	if f.Featured != nil {
		filter["featured"] = *f.Featured
	}
	if q := strings.TrimSpace(f.Search); q != "" {
		filter["name"] = bson.M{"$regex": regexp.QuoteMeta(q), "$options": "i"}
	}
	return filter
}

func slugExists(ctx context.Context, col *mongo.Collection, slug, excludeID string) (bool, error) {
	filter := bson.M{"slug": slug}
	if excludeID != "" {
		filter["_id"] = bson.M{"$ne": excludeID}
	}
	n, err := col.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
