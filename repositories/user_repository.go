// repositories/user_repository.go
package repositories

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/shopsy-store/shopsy_backend/config"
	"github.com/shopsy-store/shopsy_backend/models"
)

// UserRepository owns every mutation of the identity document. Lockout
// and OTP updates are single-document atomic operations; there is no
// in-process locking.
type UserRepository struct {
	collection *mongo.Collection
}

func NewUserRepository(db *mongo.Client) *UserRepository {
	return &UserRepository{collection: config.GetCollection(db, "users")}
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	err := r.collection.FindOne(ctx, bson.M{"username": username}).Decode(&user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.collection.FindOne(ctx, bson.M{"email": email}).Decode(&user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Exists re-checks the uniqueness invariant at registration time; the
// unique indexes remain the authority under races.
func (r *UserRepository) Exists(ctx context.Context, username, email, phone string) (bool, error) {
	err := r.collection.FindOne(ctx, bson.M{"$or": []bson.M{
		{"username": username},
		{"email": email},
		{"phoneNumber": phone},
	}}).Err()
	if err == mongo.ErrNoDocuments {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) (primitive.ObjectID, error) {
	res, err := r.collection.InsertOne(ctx, user)
	if err != nil {
		return primitive.NilObjectID, err
	}
	return res.InsertedID.(primitive.ObjectID), nil
}

// RecordFailure atomically increments the failure counter and returns the
// post-increment count. Two concurrent failures each see their own count,
// so the threshold transition cannot be lost.
func (r *UserRepository) RecordFailure(ctx context.Context, id primitive.ObjectID) (int, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated models.User
	err := r.collection.FindOneAndUpdate(
		ctx,
		bson.M{"_id": id},
		bson.M{
			"$inc": bson.M{"failedLoginAttempts": 1},
			"$set": bson.M{"updatedAt": time.Now()},
		},
		opts,
	).Decode(&updated)
	if err != nil {
		return 0, err
	}
	return updated.FailedLoginAttempts, nil
}

func (r *UserRepository) EngageLock(ctx context.Context, id primitive.ObjectID, until time.Time) error {
	_, err := r.collection.UpdateOne(
		ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"lockUntil": until, "updatedAt": time.Now()}},
	)
	return err
}

func (r *UserRepository) ClearLockout(ctx context.Context, id primitive.ObjectID) error {
	_, err := r.collection.UpdateOne(
		ctx,
		bson.M{"_id": id},
		bson.M{
			"$set":   bson.M{"failedLoginAttempts": 0, "updatedAt": time.Now()},
			"$unset": bson.M{"lockUntil": ""},
		},
	)
	return err
}

// SetRegistrationOTP overwrites the email+phone code pair; a resend
// invalidates the previous pair rather than stacking a second one.
func (r *UserRepository) SetRegistrationOTP(ctx context.Context, id primitive.ObjectID, emailOTP, phoneOTP int, expiresAt time.Time) error {
	_, err := r.collection.UpdateOne(
		ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{
			"emailOtp":     emailOTP,
			"phoneOtp":     phoneOTP,
			"otpExpiresAt": expiresAt,
			"updatedAt":    time.Now(),
		}},
	)
	return err
}

// SetResetOTP stores a fresh password-reset code. The reset flow only
// uses the email channel.
func (r *UserRepository) SetResetOTP(ctx context.Context, id primitive.ObjectID, otp int, expiresAt time.Time) error {
	_, err := r.collection.UpdateOne(
		ctx,
		bson.M{"_id": id},
		bson.M{
			"$set": bson.M{
				"emailOtp":     otp,
				"otpExpiresAt": expiresAt,
				"updatedAt":    time.Now(),
			},
			"$unset": bson.M{"phoneOtp": ""},
		},
	)
	return err
}

// MarkVerified consumes the OTP pair, flips the verification flag, lifts
// the self-expiry deadline and resets the failure counter in one atomic
// update, so no response can observe a half-verified identity.
func (r *UserRepository) MarkVerified(ctx context.Context, id primitive.ObjectID) error {
	_, err := r.collection.UpdateOne(
		ctx,
		bson.M{"_id": id},
		bson.M{
			"$set": bson.M{
				"isVerified":          true,
				"failedLoginAttempts": 0,
				"updatedAt":           time.Now(),
			},
			"$unset": bson.M{
				"emailOtp":     "",
				"phoneOtp":     "",
				"otpExpiresAt": "",
				"validTill":    "",
				"lockUntil":    "",
			},
		},
	)
	return err
}

// UpdatePassword consumes the reset code and stores the new hash in one
// atomic update.
func (r *UserRepository) UpdatePassword(ctx context.Context, id primitive.ObjectID, passwordHash string) error {
	_, err := r.collection.UpdateOne(
		ctx,
		bson.M{"_id": id},
		bson.M{
			"$set": bson.M{
				"password":            passwordHash,
				"failedLoginAttempts": 0,
				"updatedAt":           time.Now(),
			},
			"$unset": bson.M{
				"emailOtp":     "",
				"phoneOtp":     "",
				"otpExpiresAt": "",
				"lockUntil":    "",
			},
		},
	)
	return err
}

// DeleteUnverifiedByEmail cancels a pending registration. Verified
// identities are never deleted through this path.
func (r *UserRepository) DeleteUnverifiedByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.collection.FindOneAndDelete(ctx, bson.M{
		"email":      email,
		"isVerified": false,
	}).Decode(&user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}
