package catalog

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/lfreyesc23-dotcom/OsitosLua/internal/models"
)

func TestParseQueryDefaults(t *testing.T) {
	q, err := ParseQuery(url.Values{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), q.Page)
	assert.Equal(t, int64(DefaultLimit), q.Limit)
	assert.Equal(t, bson.M{"isDeleted": bson.M{"$ne": true}}, q.Filter())
}

func TestParseQueryFilters(t *testing.T) {
	q, err := ParseQuery(url.Values{
		"q":         {"oso (grande)"},
		"categoria": {"Peluches"},
		"minPrecio": {"5000"},
		"maxPrecio": {"20000"},
		"page":      {"3"},
		"limit":     {"10"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(20), q.Skip())

	filter := q.Filter()
	assert.Equal(t, "Peluches", filter["category"])
	assert.Equal(t, bson.M{"$gte": int64(5000), "$lte": int64(20000)}, filter["price"])

	or, ok := filter["$or"].(bson.A)
	require.True(t, ok)
	require.Len(t, or, 2)
	assert.Equal(t, bson.M{"name": bson.M{"$regex": `oso \(grande\)`, "$options": "i"}}, or[0])
}

func TestParseQueryRejectsInvalid(t *testing.T) {
	bad := []url.Values{
		{"page": {"0"}},
		{"limit": {"abc"}},
		{"limit": {"500"}},
		{"minPrecio": {"-1"}},
		{"minPrecio": {"9000"}, "maxPrecio": {"100"}},
		{"page": {"99999999999999"}},
		{"minPrecio": {"NaN"}},
		{"maxPrecio": {"Inf"}},
		{"maxPrecio": {"1e300"}},
	}
	for _, v := range bad {
		_, err := ParseQuery(v)
		assert.ErrorIs(t, err, ErrInvalidQuery, v.Encode())
	}
}

func TestNewPagination(t *testing.T) {
	p := NewPagination(1, 20, 45)
	assert.Equal(t, int64(3), p.TotalPages)
	assert.True(t, p.HasMore)

	last := NewPagination(3, 20, 45)
	assert.False(t, last.HasMore)

	empty := NewPagination(1, 20, 0)
	assert.Equal(t, int64(0), empty.TotalPages)
	assert.False(t, empty.HasMore)
}

func TestDecorate(t *testing.T) {
	p := models.Product{Price: 10000, Discount: 20, Stock: 0}
	Decorate(&p)
	assert.Equal(t, int64(8000), p.FinalPrice)
	assert.False(t, p.InStock)
	assert.NotNil(t, p.Images)
}
