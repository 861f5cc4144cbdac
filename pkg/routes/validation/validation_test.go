package validation

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/pkg/models"
)

func newContext(body string) echo.Context {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return echo.New().NewContext(req, httptest.NewRecorder())
}

func TestBind(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{name: "valid", body: `{"primary_id": 1, "duplicate_ids": [2, 3]}`},
		{name: "malformed", body: `{"primary_id": `, wantErr: true},
		{name: "missing primary", body: `{"duplicate_ids": [2]}`, wantErr: true},
		{name: "empty duplicates", body: `{"primary_id": 1, "duplicate_ids": []}`, wantErr: true},
		{name: "non-positive duplicate", body: `{"primary_id": 1, "duplicate_ids": [0]}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := Bind[models.MergeRequest](newContext(tt.body))
			if !tt.wantErr {
				require.NoError(t, err)
				assert.Equal(t, int64(1), req.PrimaryID)
				return
			}
			require.Error(t, err)
			assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err))
		})
	}
}

func TestMessage(t *testing.T) {
	err := validate.Struct(models.MergeRequest{PrimaryID: 1, DuplicateIDs: []int64{0}})
	require.Error(t, err)
	assert.Equal(t, "MergeRequest.DuplicateIDs[0] failed rule 'gt=0'", Message(err))

	err = validate.Struct(models.GroupActionRequest{})
	require.Error(t, err)
	assert.Equal(t, "GroupActionRequest.MemberIDs failed rule 'required'", Message(err))
}
