// README: Firebase Admin SDK initialisation: Firestore, FCM, RTDB, token verifier.
package infra

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"firebase.google.com/go/v4/db"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// Firebase bundles the Admin SDK clients this service uses. The same app
// handle backs the document store, push delivery, courier tracking and token
// verification.
type Firebase struct {
	App       *firebase.App
	Firestore *firestore.Client
	Messaging *messaging.Client
	Database  *db.Client
	auth      *auth.Client
}

// NewFirebase initialises the Admin SDK. If credentialsFile is non-empty it
// is used as the service-account JSON path; otherwise application-default
// credentials apply. projectID is required for Firestore and token
// verification; databaseURL is optional and enables the RTDB client used for
// courier tracking.
func NewFirebase(ctx context.Context, projectID, credentialsFile, databaseURL string) (*Firebase, error) {
	opts := []option.ClientOption{}
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID, DatabaseURL: databaseURL}, opts...)
	if err != nil {
		return nil, fmt.Errorf("firebase.NewApp: %w", err)
	}

	fs, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase app.Firestore: %w", err)
	}
	msg, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase app.Messaging: %w", err)
	}
	authClient, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase app.Auth: %w", err)
	}

	f := &Firebase{App: app, Firestore: fs, Messaging: msg, auth: authClient}
	if databaseURL != "" {
		f.Database, err = app.Database(ctx)
		if err != nil {
			return nil, fmt.Errorf("firebase app.Database: %w", err)
		}
	}
	return f, nil
}

// Close releases the Firestore client (the other clients hold no resources).
func (f *Firebase) Close() error {
	if f.Firestore != nil {
		return f.Firestore.Close()
	}
	return nil
}

// FirebaseToken holds the verified token data used by downstream middleware.
type FirebaseToken struct {
	UID    string
	Claims map[string]interface{}
}

// TokenVerifier verifies a raw Firebase ID token string and returns token data.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*FirebaseToken, error)
}

// Verifier returns the production TokenVerifier backed by the Admin SDK.
func (f *Firebase) Verifier() TokenVerifier {
	return &firebaseVerifier{client: f.auth}
}

type firebaseVerifier struct {
	client *auth.Client
}

func (v *firebaseVerifier) VerifyIDToken(ctx context.Context, idToken string) (*FirebaseToken, error) {
	token, err := v.client.VerifyIDToken(ctx, idToken)
	if err != nil {
		return nil, err
	}
	return &FirebaseToken{UID: token.UID, Claims: token.Claims}, nil
}
