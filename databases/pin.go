package databases

// go generate: mockery --name PinDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linesmerrill/advisory-chat-api/models"
)

const pinName = "pinnedmessages"

// PinDatabase contains the methods to use with the pinned message database
type PinDatabase interface {
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.PinnedMessage, error)
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.PinnedMessage, error)
	InsertOne(ctx context.Context, pin models.PinnedMessage) error
	DeleteOne(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (int64, error)
	UpdateMany(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (int64, error)
}

type pinDatabase struct {
	db DatabaseHelper
}

// NewPinDatabase initializes a new instance of pin database with the provided db connection
func NewPinDatabase(db DatabaseHelper) PinDatabase {
	return &pinDatabase{
		db: db,
	}
}

func (p *pinDatabase) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.PinnedMessage, error) {
	pin := &models.PinnedMessage{}
	err := p.db.Collection(pinName).FindOne(ctx, filter, opts...).Decode(&pin)
	if err != nil {
		return nil, err
	}
	return pin, nil
}

func (p *pinDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.PinnedMessage, error) {
	var pins []models.PinnedMessage
	curr, err := p.db.Collection(pinName).Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer curr.Close(ctx)
	err = curr.All(ctx, &pins)
	if err != nil {
		return nil, err
	}
	return pins, nil
}

func (p *pinDatabase) InsertOne(ctx context.Context, pin models.PinnedMessage) error {
	_, err := p.db.Collection(pinName).InsertOne(ctx, pin)
	return err
}

func (p *pinDatabase) DeleteOne(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (int64, error) {
	res, err := p.db.Collection(pinName).DeleteOne(ctx, filter, opts...)
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (p *pinDatabase) UpdateMany(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (int64, error) {
	res, err := p.db.Collection(pinName).UpdateMany(ctx, filter, update, opts...)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}
