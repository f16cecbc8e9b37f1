package mongo

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"example.com/signup/internal/domain"
)

func TestDocumentUsesNameAsID(t *testing.T) {
	raw, err := bson.Marshal(fromDomain(domain.Activity{Name: "Chess Club", MaxParticipants: 12}))
	require.NoError(t, err)

	var generic bson.M
	require.NoError(t, bson.Unmarshal(raw, &generic))
	require.Equal(t, "Chess Club", generic["_id"])
	require.EqualValues(t, 12, generic["max_participants"])
	require.IsType(t, bson.A{}, generic["participants"], "participants must be stored as an array so $size works")
	require.Len(t, generic["participants"], 0)
	require.NotContains(t, generic, "name")
}

func TestToDomainRejectsMalformedDocuments(t *testing.T) {
	_, err := activityDocument{Name: "Chess Club", MaxParticipants: 0}.toDomain()
	require.ErrorIs(t, err, domain.ErrInvalidActivity)

	a, err := activityDocument{Name: "Chess Club", MaxParticipants: 12}.toDomain()
	require.NoError(t, err)
	require.NotNil(t, a.Participants)
}
