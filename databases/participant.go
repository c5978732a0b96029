package databases

// go generate: mockery --name ParticipantDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linesmerrill/advisory-chat-api/models"
)

const participantName = "participants"

// ParticipantDatabase contains the methods to use with the participant database
type ParticipantDatabase interface {
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.Participant, error)
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Participant, error)
	CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error)
	InsertOne(ctx context.Context, p models.Participant) error
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) error
}

type participantDatabase struct {
	db DatabaseHelper
}

// NewParticipantDatabase initializes a new instance of participant database with the provided db connection
func NewParticipantDatabase(db DatabaseHelper) ParticipantDatabase {
	return &participantDatabase{
		db: db,
	}
}

func (p *participantDatabase) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.Participant, error) {
	participant := &models.Participant{}
	err := p.db.Collection(participantName).FindOne(ctx, filter, opts...).Decode(&participant)
	if err != nil {
		return nil, err
	}
	return participant, nil
}

func (p *participantDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Participant, error) {
	var participants []models.Participant
	curr, err := p.db.Collection(participantName).Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer curr.Close(ctx)
	err = curr.All(ctx, &participants)
	if err != nil {
		return nil, err
	}
	return participants, nil
}

func (p *participantDatabase) CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error) {
	return p.db.Collection(participantName).CountDocuments(ctx, filter, opts...)
}

func (p *participantDatabase) InsertOne(ctx context.Context, participant models.Participant) error {
	_, err := p.db.Collection(participantName).InsertOne(ctx, participant)
	return err
}

func (p *participantDatabase) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) error {
	res, err := p.db.Collection(participantName).UpdateOne(ctx, filter, update, opts...)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotMatched
	}
	return nil
}
