package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/ultra-white/keda/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// One document per user. Items carry the price snapshot taken when
// they were added; prices are stored as decimal strings.
type cartDocument struct {
	ID        string         `bson:"_id,omitempty"`
	UserID    string         `bson:"user_id"`
	Items     []itemDocument `bson:"items"`
	CreatedAt time.Time      `bson:"created_at"`
	UpdatedAt time.Time      `bson:"updated_at"`
}

type itemDocument struct {
	ProductID string    `bson:"product_id"`
	Brand     string    `bson:"brand,omitempty"`
	Model     string    `bson:"model,omitempty"`
	Image     string    `bson:"image,omitempty"`
	Price     string    `bson:"price"`
	OldPrice  *string   `bson:"old_price,omitempty"`
	Size      *int      `bson:"size,omitempty"`
	Quantity  int       `bson:"quantity"`
	AddedAt   time.Time `bson:"added_at"`
}

type mongoRepository struct {
	collection *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) CartRepository {
	return &mongoRepository{collection: db.Collection("carts")}
}

func (m *mongoRepository) GetCart(ctx context.Context, userID string) ([]domain.LineItem, error) {
	doc, err := m.findCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	items, err := mapItemsToDomain(doc.Items)
	if err != nil {
		return nil, fmt.Errorf("mapItemsToDomain: %w", err)
	}
	return items, nil
}

// ReplaceCart overwrites the user's whole cart with items, creating
// the document if absent.
func (m *mongoRepository) ReplaceCart(ctx context.Context, userID string, items []domain.LineItem) error {
	return m.upsertItems(ctx, userID, mapItemsToDocuments(items))
}

// AddItem increments the matching (product, size) line or appends a
// new one.
func (m *mongoRepository) AddItem(ctx context.Context, userID string, item domain.LineItem) error {
	doc, err := m.findCart(ctx, userID)
	if err != nil && !errors.Is(err, ErrCartNotFound) {
		return err
	}

	added := mapItemToDocument(item)
	key := item.Key()

	var items []itemDocument
	if doc != nil {
		items = doc.Items
	}

	merged := false
	for i := range items {
		if domain.ItemKey(items[i].ProductID, items[i].Size) == key {
			items[i].Quantity = domain.ClampQuantity(items[i].Quantity + item.Quantity)
			items[i].AddedAt = added.AddedAt
			merged = true
			break
		}
	}
	if !merged {
		items = append(items, added)
	}

	return m.upsertItems(ctx, userID, items)
}

// UpdateItemQuantity sets the quantity of the matching line(s). A nil
// size targets every size variant of the product. A quantity at or
// below zero deletes the line(s).
func (m *mongoRepository) UpdateItemQuantity(ctx context.Context, userID, productID string, quantity int, size *int) error {
	if quantity <= 0 {
		return m.RemoveItem(ctx, userID, productID, size)
	}

	doc, err := m.findCart(ctx, userID)
	if errors.Is(err, ErrCartNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	quantity = domain.ClampQuantity(quantity)
	changed := false
	for i := range doc.Items {
		if doc.Items[i].ProductID != productID {
			continue
		}
		if size != nil && (doc.Items[i].Size == nil || *doc.Items[i].Size != *size) {
			continue
		}
		doc.Items[i].Quantity = quantity
		changed = true
	}
	if !changed {
		return nil
	}

	return m.upsertItems(ctx, userID, doc.Items)
}

// RemoveItem deletes the matching line(s). A nil size targets every
// size variant. Removing what is not there is a no-op.
func (m *mongoRepository) RemoveItem(ctx context.Context, userID, productID string, size *int) error {
	doc, err := m.findCart(ctx, userID)
	if errors.Is(err, ErrCartNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	kept := doc.Items[:0]
	for _, it := range doc.Items {
		remove := it.ProductID == productID &&
			(size == nil || (it.Size != nil && *it.Size == *size))
		if !remove {
			kept = append(kept, it)
		}
	}
	if len(kept) == len(doc.Items) {
		return nil
	}

	return m.upsertItems(ctx, userID, kept)
}

func (m *mongoRepository) DeleteCart(ctx context.Context, userID string) error {
	if _, err := m.collection.DeleteOne(ctx, bson.M{"user_id": userID}); err != nil {
		return fmt.Errorf("failed to delete cart: %w", err)
	}
	return nil
}

func (m *mongoRepository) findCart(ctx context.Context, userID string) (*cartDocument, error) {
	var doc cartDocument
	err := m.collection.FindOne(ctx, bson.M{"user_id": userID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrCartNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}
	return &doc, nil
}

func (m *mongoRepository) upsertItems(ctx context.Context, userID string, items []itemDocument) error {
	now := time.Now()
	filter := bson.M{"user_id": userID}
	update := bson.M{
		"$set":         bson.M{"items": items, "updated_at": now},
		"$setOnInsert": bson.M{"user_id": userID, "created_at": now},
	}
	opts := options.Update().SetUpsert(true)

	if _, err := m.collection.UpdateOne(ctx, filter, update, opts); err != nil {
		return fmt.Errorf("failed to upsert cart: %w", err)
	}
	return nil
}

func mapItemToDocument(item domain.LineItem) itemDocument {
	doc := itemDocument{
		ProductID: item.Product.ID,
		Brand:     item.Product.Brand,
		Model:     item.Product.Model,
		Image:     item.Product.Image,
		Price:     item.Product.Price.String(),
		Size:      item.Product.SelectedSize,
		Quantity:  domain.ClampQuantity(item.Quantity),
		AddedAt:   time.Now(),
	}
	if item.Product.OldPrice != nil {
		old := item.Product.OldPrice.String()
		doc.OldPrice = &old
	}
	return doc
}

func mapItemsToDocuments(items []domain.LineItem) []itemDocument {
	docs := make([]itemDocument, 0, len(items))
	for _, it := range items {
		docs = append(docs, mapItemToDocument(it))
	}
	return docs
}

func mapItemToDomain(doc itemDocument) (domain.LineItem, error) {
	price, err := decimal.NewFromString(doc.Price)
	if err != nil {
		return domain.LineItem{}, fmt.Errorf("price[%s] is not valid: %w", doc.Price, err)
	}

	item := domain.LineItem{
		Product: domain.Product{
			ID:           doc.ProductID,
			Brand:        doc.Brand,
			Model:        doc.Model,
			Image:        doc.Image,
			Price:        price,
			SelectedSize: doc.Size,
		},
		Quantity: doc.Quantity,
	}
	if doc.OldPrice != nil {
		old, err := decimal.NewFromString(*doc.OldPrice)
		if err != nil {
			return domain.LineItem{}, fmt.Errorf("old price[%s] is not valid: %w", *doc.OldPrice, err)
		}
		item.Product.OldPrice = &old
	}
	return item, nil
}

func mapItemsToDomain(docs []itemDocument) ([]domain.LineItem, error) {
	var items []domain.LineItem
	for _, doc := range docs {
		item, err := mapItemToDomain(doc)
		if err != nil {
			return nil, fmt.Errorf("mapItemToDomain: %w", err)
		}
		items = append(items, item)
	}
	return items, nil
}
