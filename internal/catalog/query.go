// Package catalog answers read-only product listing queries.
package catalog

import (
	"errors"
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
	MaxPage      = 10000

	maxPriceFilter = 1_000_000_000_000
)

var ErrInvalidQuery = errors.New("invalid catalog query")

type Query struct {
	Search   string
	Category string
	MinPrice *int64
	MaxPrice *int64
	Page     int64
	Limit    int64
}

// ParsePagination applies the 1/20 defaults and rejects values outside
// 1..MaxPage and 1..MaxLimit.
func ParsePagination(pageStr, limitStr string) (int64, int64, error) {
	page, limit := int64(1), int64(DefaultLimit)

	if pageStr = strings.TrimSpace(pageStr); pageStr != "" {
		p, err := strconv.ParseInt(pageStr, 10, 64)
		if err != nil || p < 1 || p > MaxPage {
			return 0, 0, ErrInvalidQuery
		}
		page = p
	}
	if limitStr = strings.TrimSpace(limitStr); limitStr != "" {
		l, err := strconv.ParseInt(limitStr, 10, 64)
		if err != nil || l < 1 || l > MaxLimit {
			return 0, 0, ErrInvalidQuery
		}
		limit = l
	}
	return page, limit, nil
}

// ParseQuery reads q, categoria, minPrecio, maxPrecio, page and limit.
// English aliases (search, category, minPrice, maxPrice) are accepted too.
func ParseQuery(values url.Values) (Query, error) {
	page, limit, err := ParsePagination(values.Get("page"), values.Get("limit"))
	if err != nil {
		return Query{}, err
	}

	q := Query{
		Search:   strings.TrimSpace(first(values, "q", "search")),
		Category: strings.TrimSpace(first(values, "categoria", "category")),
		Page:     page,
		Limit:    limit,
	}

	if q.MinPrice, err = parsePrice(first(values, "minPrecio", "minPrice")); err != nil {
		return Query{}, err
	}
	if q.MaxPrice, err = parsePrice(first(values, "maxPrecio", "maxPrice")); err != nil {
		return Query{}, err
	}
	if q.MinPrice != nil && q.MaxPrice != nil && *q.MinPrice > *q.MaxPrice {
		return Query{}, ErrInvalidQuery
	}
	return q, nil
}

func first(values url.Values, keys ...string) string {
	for _, k := range keys {
		if v := values.Get(k); v != "" {
			return v
		}
	}
	return ""
}

func parsePrice(raw string) (*int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f < 0 || f > maxPriceFilter {
		return nil, ErrInvalidQuery
	}
	v := int64(f)
	return &v, nil
}

// Filter renders the query as a Mongo filter over non-deleted products.
func (q Query) Filter() bson.M {
	filter := bson.M{"isDeleted": bson.M{"$ne": true}}

	if q.Search != "" {
		pattern := regexp.QuoteMeta(q.Search)
		filter["$or"] = bson.A{
			bson.M{"name": bson.M{"$regex": pattern, "$options": "i"}},
			bson.M{"description": bson.M{"$regex": pattern, "$options": "i"}},
		}
	}
	if q.Category != "" {
		filter["category"] = q.Category
	}
	if q.MinPrice != nil || q.MaxPrice != nil {
		price := bson.M{}
		if q.MinPrice != nil {
			price["$gte"] = *q.MinPrice
		}
		if q.MaxPrice != nil {
			price["$lte"] = *q.MaxPrice
		}
		filter["price"] = price
	}
	return filter
}

func (q Query) Skip() int64 {
	return (q.Page - 1) * q.Limit
}
