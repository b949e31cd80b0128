package handlers

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lfreyesc23-dotcom/OsitosLua/internal/models"
)

func TestSummarizeReviews(t *testing.T) {
	stats := summarizeReviews([]models.Review{{Rating: 5}, {Rating: 4}, {Rating: 4}})
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 4.3, stats.Average)
	assert.Equal(t, map[int]int{1: 0, 2: 0, 3: 0, 4: 2, 5: 1}, stats.Distribution)

	empty := summarizeReviews(nil)
	assert.Zero(t, empty.Total)
	assert.Zero(t, empty.Average)
	assert.Len(t, empty.Distribution, 5)
}

func TestSummarizeModeration(t *testing.T) {
	stats := summarizeModeration([]models.Review{{Rating: 5, Approved: true}, {Rating: 2}})
	assert.Equal(t, moderationStats{Total: 2, Approved: 1, Pending: 1, Average: 3.5}, stats)
}

func TestCleanCommentSanitizesBeforeMeasuring(t *testing.T) {
	comment, err := cleanComment("  <b>Muy suave</b> y bonito <script>alert(1)</script> ")
	require.NoError(t, err)
	assert.Equal(t, "Muy suave y bonito", comment)

	_, err = cleanComment("<i>corto</i>")
	assert.ErrorIs(t, err, errReviewComment)

	_, err = cleanComment(strings.Repeat("ñ", reviewCommentMax+1))
	assert.ErrorIs(t, err, errReviewComment)

	_, err = cleanComment(strings.Repeat("ñ", reviewCommentMax))
	assert.NoError(t, err)
}

func TestCheckRating(t *testing.T) {
	assert.NoError(t, checkRating(1))
	assert.NoError(t, checkRating(5))
	assert.ErrorIs(t, checkRating(0), errReviewRating)
	assert.ErrorIs(t, checkRating(6), errReviewRating)
}
