package textextract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFold(t *testing.T) {
	assert.Equal(t, "chung chi toeic", Fold("Chứng Chỉ TOEIC"))
	assert.Equal(t, "ho so xin viec", Fold("Hồ sơ xin việc"))
	assert.Equal(t, "dai hoc quoc gia", Fold("Đại học Quốc gia"))
	assert.Equal(t, "resume", Fold("Résumé"))
	assert.Equal(t, "plain", Fold("plain"))
}
