package exporter

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client"

	charmsv1alpha1 "github.com/osmops/mongodb-exporter-operator/api/v1alpha1"
)

// DefaultURIKey is the Secret data key holding the connection URI when the
// spec does not name one. It matches the key published by the MongoDB
// operator's client interface.
const DefaultURIKey = "uris"

// Blocked errors: the exporter cannot make progress until the spec changes.
var (
	// ErrNoMongoDBSource means neither the inline URI nor a connection
	// Secret is configured.
	ErrNoMongoDBSource = errors.New("no MongoDB URI configured: set mongodbURI or mongodb.secretRef")

	// ErrConflictingSources means both the inline URI and a connection
	// Secret are configured.
	ErrConflictingSources = errors.New("MongoDB URI cannot come from config and relation at the same time")

	// ErrMalformedURI means the resolved URI does not look like a MongoDB
	// connection string.
	ErrMalformedURI = errors.New("MongoDB URI is not properly formed")
)

// ErrRelationPending means a connection Secret is configured but its data has
// not arrived yet. Unlike the blocked errors this is transient.
var ErrRelationPending = errors.New("waiting for MongoDB connection secret")

// MongoDBSource is the resolved origin of the workload's connection URI.
type MongoDBSource struct {
	// Origin is MongoDBSourceConfig or MongoDBSourceRelation.
	Origin string

	// URI is the resolved connection string.
	URI string

	// SecretName and SecretKey are set when Origin is the relation path,
	// so the workload can reference the Secret instead of the raw value.
	SecretName string
	SecretKey  string
}

// Checksum returns a short digest of the resolved URI. It is stamped onto the
// pod template so a changed connection string rolls the workload.
func (s *MongoDBSource) Checksum() string {
	sum := sha256.Sum256([]byte(s.URI))
	return hex.EncodeToString(sum[:])
}

// ResolveMongoDBSource determines where the exporter's connection URI comes
// from: the inline spec field or the relation Secret. Exactly one of the two
// must be set.
//
// Returned errors are classified by IsBlocked and IsPending; anything else is
// a transport failure talking to the API server.
func ResolveMongoDBSource(
	ctx context.Context,
	c client.Reader,
	exp *charmsv1alpha1.MongoDBExporter,
) (*MongoDBSource, error) {
	inline := exp.Spec.MongoDBURI
	relation := exp.Spec.MongoDB

	switch {
	case inline != "" && relation != nil:
		return nil, ErrConflictingSources
	case inline == "" && relation == nil:
		return nil, ErrNoMongoDBSource
	}

	if inline != "" {
		if err := validateURI(inline); err != nil {
			return nil, err
		}
		return &MongoDBSource{
			Origin: charmsv1alpha1.MongoDBSourceConfig,
			URI:    inline,
		}, nil
	}

	key := relation.SecretRef.Key
	if key == "" {
		key = DefaultURIKey
	}

	secret := &corev1.Secret{}
	err := c.Get(ctx, types.NamespacedName{
		Namespace: exp.Namespace,
		Name:      relation.SecretRef.Name,
	}, secret)
	if err != nil {
		if apierrors.IsNotFound(err) {
			return nil, fmt.Errorf("%w: secret %q not found", ErrRelationPending, relation.SecretRef.Name)
		}
		return nil, fmt.Errorf("failed to get connection secret %q: %w", relation.SecretRef.Name, err)
	}

	uri := string(secret.Data[key])
	if uri == "" {
		return nil, fmt.Errorf("%w: secret %q has no %q key", ErrRelationPending, relation.SecretRef.Name, key)
	}
	if err := validateURI(uri); err != nil {
		return nil, err
	}

	return &MongoDBSource{
		Origin:     charmsv1alpha1.MongoDBSourceRelation,
		URI:        uri,
		SecretName: relation.SecretRef.Name,
		SecretKey:  key,
	}, nil
}

// IsBlocked reports whether err requires a spec change to clear.
func IsBlocked(err error) bool {
	return errors.Is(err, ErrNoMongoDBSource) ||
		errors.Is(err, ErrConflictingSources) ||
		errors.Is(err, ErrMalformedURI)
}

// IsPending reports whether err clears on its own once the relation data
// arrives.
func IsPending(err error) bool {
	return errors.Is(err, ErrRelationPending)
}

func validateURI(uri string) error {
	if !strings.HasPrefix(uri, "mongodb://") && !strings.HasPrefix(uri, "mongodb+srv://") {
		return fmt.Errorf("%w: must start with mongodb:// or mongodb+srv://", ErrMalformedURI)
	}
	return nil
}
