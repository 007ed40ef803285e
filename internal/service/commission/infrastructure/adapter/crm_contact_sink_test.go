package adapter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"nexus-commission/internal/pkg/httpclient"
	"nexus-commission/internal/service/commission/domain"
)

func TestCRMContactSink(t *testing.T) {
	var got domain.ContactRecord
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/hooks/contacts", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	sink := NewCRMContactSink(httpclient.NewClient(noop.NewTracerProvider().Tracer("test")), srv.URL+"/hooks/contacts")
	err := sink.SyncContact(context.Background(), domain.ContactRecord{
		Email:     "c@x.com",
		PartnerID: "p-1",
		OrderID:   "o-1",
		Source:    "partner_referral",
	})
	require.NoError(t, err)
	assert.Equal(t, "c@x.com", got.Email)
	assert.Equal(t, "o-1", got.OrderID)
}
