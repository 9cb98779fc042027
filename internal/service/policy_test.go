package service

import (
	"EvidenceVault/internal/model"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"gorm.io/gorm"
)

func TestAllowedMimeType(t *testing.T) {
	allowed := []string{
		"image/jpeg", "IMAGE/PNG", "video/mp4", "application/pdf",
		"text/plain; charset=utf-8", "application/msword",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"application/vnd.oasis.opendocument.text",
	}
	for _, mt := range allowed {
		assert.True(t, AllowedMimeType(mt), mt)
	}
	for _, mt := range []string{"", "application/x-msdownload", "application/zip", "text/html"} {
		assert.False(t, AllowedMimeType(mt), mt)
	}
}

func TestValidateUpload(t *testing.T) {
	ok := UploadCheck{Owner: "ext", HasFile: true, MimeType: "image/png", Size: 10, MaxBytes: 100}
	assert.NoError(t, ValidateUpload(ok))

	cases := map[string]func(c *UploadCheck){
		"no owner":  func(c *UploadCheck) { c.Owner = "" },
		"no file":   func(c *UploadCheck) { c.HasFile = false },
		"bad type":  func(c *UploadCheck) { c.MimeType = "application/zip" },
		"oversized": func(c *UploadCheck) { c.Size = 101 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := ok
			mutate(&c)
			err := ValidateUpload(c)
			assert.True(t, IsValidation(err), "got %v", err)
		})
	}

	unlimited := ok
	unlimited.MaxBytes = 0
	unlimited.Size = 1 << 40
	assert.NoError(t, ValidateUpload(unlimited))
}

func TestAccessGate(t *testing.T) {
	ctx := context.Background()
	users := new(mockUserRepo)
	users.On("GetUserByExternalID", mock.Anything, "ext-1").Return(&model.User{ID: 7, ExternalID: "ext-1"}, nil)
	users.On("GetUserByExternalID", mock.Anything, "ghost").Return((*model.User)(nil), gorm.ErrRecordNotFound)
	gate := NewAccessGate(users)

	id, err := gate.ResolveOwner(ctx, "ext-1")
	assert.NoError(t, err)
	assert.Equal(t, int64(7), id)

	_, err = gate.ResolveOwner(ctx, "ghost")
	assert.ErrorIs(t, err, ErrUnknownOwner)

	_, err = gate.ResolveOwner(ctx, " ")
	assert.True(t, IsValidation(err))

	assert.NoError(t, gate.Authorize(7, &model.Evidence{OwnerID: 7}))
	assert.ErrorIs(t, gate.Authorize(8, &model.Evidence{OwnerID: 7}), ErrForbidden)
	assert.ErrorIs(t, gate.Authorize(7, nil), ErrForbidden)
}
