package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestStringListDecodesLegacySingleImage(t *testing.T) {
	raw, err := bson.Marshal(bson.M{"name": "Osito", "images": " https://cdn/osito.jpg "})
	require.NoError(t, err)

	var p Product
	require.NoError(t, bson.Unmarshal(raw, &p))
	assert.Equal(t, StringList{"https://cdn/osito.jpg"}, p.Images)
	assert.Equal(t, "https://cdn/osito.jpg", p.Thumbnail())
}

func TestStringListDropsBlankEntries(t *testing.T) {
	raw, err := bson.Marshal(bson.M{"images": []string{"a.jpg", " ", "b.jpg"}})
	require.NoError(t, err)

	var p Product
	require.NoError(t, bson.Unmarshal(raw, &p))
	assert.Equal(t, StringList{"a.jpg", "b.jpg"}, p.Images)
}

func TestNilStringListMarshalsAsArray(t *testing.T) {
	raw, err := bson.Marshal(Product{Name: "Osito"})
	require.NoError(t, err)

	var doc bson.M
	require.NoError(t, bson.Unmarshal(raw, &doc))
	assert.Equal(t, bson.A{}, doc["images"])
}

func TestRefreshTokenUsable(t *testing.T) {
	now := time.Now()
	token := RefreshToken{ExpiresAt: now.Add(time.Hour)}
	assert.True(t, token.Usable(now))

	token.Revoked = true
	assert.False(t, token.Usable(now))
	assert.False(t, RefreshToken{ExpiresAt: now.Add(-time.Second)}.Usable(now))
}
