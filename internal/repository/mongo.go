package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"telepharmacy-server/internal/models"
)

// Collection names of the document store layout.
const (
	CollectionUsers        = "users"
	CollectionAppointments = "appointments"
)

// EnsureMongoIndexes creates the indexes the repositories rely on.
func EnsureMongoIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(CollectionUsers).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "role", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create user indexes: %w", err)
	}

	_, err = db.Collection(CollectionAppointments).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "patientId", Value: 1}, {Key: "scheduledDate", Value: -1}}},
		{Keys: bson.D{{Key: "pharmacistId", Value: 1}, {Key: "scheduledDate", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("create appointment indexes: %w", err)
	}
	return nil
}

func stampNew(base *models.BaseModel) {
	if base.ID == "" {
		base.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if base.CreatedAt.IsZero() {
		base.CreatedAt = now
	}
	if base.UpdatedAt.IsZero() {
		base.UpdatedAt = now
	}
}

type mongoUserRepository struct {
	collection *mongo.Collection
}

// NewMongoUserRepository returns a UserRepository backed by the users collection.
func NewMongoUserRepository(db *mongo.Database) UserRepository {
	return &mongoUserRepository{collection: db.Collection(CollectionUsers)}
}

func (r *mongoUserRepository) Create(ctx context.Context, user *models.User) error {
	stampNew(&user.BaseModel)
	if _, err := r.collection.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *mongoUserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *mongoUserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *mongoUserRepository) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	var user models.User
	if err := r.collection.FindOne(ctx, filter).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &user, nil
}

func (r *mongoUserRepository) ListPharmacists(ctx context.Context) ([]models.User, error) {
	opts := options.Find().SetSort(bson.D{{Key: "displayName", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"role": models.RolePharmacist}, opts)
	if err != nil {
		return nil, fmt.Errorf("list pharmacists: %w", err)
	}
	users := []models.User{}
	if err := cursor.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("decode pharmacists: %w", err)
	}
	return users, nil
}

func (r *mongoUserRepository) Update(ctx context.Context, user *models.User) error {
	user.UpdatedAt = time.Now().UTC()
	res, err := r.collection.ReplaceOne(ctx, bson.M{"_id": user.ID}, user)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("replace user: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

type mongoAppointmentRepository struct {
	collection *mongo.Collection
}

// NewMongoAppointmentRepository returns an AppointmentRepository backed by the appointments collection.
func NewMongoAppointmentRepository(db *mongo.Database) AppointmentRepository {
	return &mongoAppointmentRepository{collection: db.Collection(CollectionAppointments)}
}

func (r *mongoAppointmentRepository) Create(ctx context.Context, appointment *models.Appointment) error {
	if err := appointment.Validate(); err != nil {
		return err
	}
	stampNew(&appointment.BaseModel)
	if appointment.Version == 0 {
		appointment.Version = 1
	}
	if _, err := r.collection.InsertOne(ctx, appointment); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert appointment: %w", err)
	}
	return nil
}

func (r *mongoAppointmentRepository) FindByID(ctx context.Context, id string) (*models.Appointment, error) {
	var appointment models.Appointment
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&appointment); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find appointment: %w", err)
	}
	return &appointment, nil
}

func (r *mongoAppointmentRepository) ListByPatient(ctx context.Context, patientID string) ([]models.Appointment, error) {
	return r.listBy(ctx, bson.M{"patientId": patientID})
}

func (r *mongoAppointmentRepository) ListByPharmacist(ctx context.Context, pharmacistID string) ([]models.Appointment, error) {
	return r.listBy(ctx, bson.M{"pharmacistId": pharmacistID})
}

func (r *mongoAppointmentRepository) listBy(ctx context.Context, filter bson.M) ([]models.Appointment, error) {
	opts := options.Find().SetSort(bson.D{{Key: "scheduledDate", Value: -1}, {Key: "scheduledTime", Value: -1}})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	appointments := []models.Appointment{}
	if err := cursor.All(ctx, &appointments); err != nil {
		return nil, fmt.Errorf("decode appointments: %w", err)
	}
	return appointments, nil
}

func (r *mongoAppointmentRepository) UpdateStatus(ctx context.Context, u StatusUpdate) error {
	if !u.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", models.ErrInvalidAppointment, u.Status)
	}

	set := bson.M{"status": u.Status, "updatedAt": u.UpdatedAt}
	if u.Notes != nil {
		set["notes"] = *u.Notes
	}
	if u.Prescription != nil {
		set["prescription"] = *u.Prescription
	}

	filter := bson.M{"_id": u.ID, "version": u.ExpectedVersion}
	update := bson.M{"$set": set, "$inc": bson.M{"version": 1}}
	res, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("update appointment status: %w", err)
	}
	if res.MatchedCount > 0 {
		return nil
	}

	count, err := r.collection.CountDocuments(ctx, bson.M{"_id": u.ID})
	if err != nil {
		return fmt.Errorf("update appointment status: %w", err)
	}
	if count == 0 {
		return ErrNotFound
	}
	return ErrVersionConflict
}
