package hc2propagator

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hc2-project/hc2/pkg/hc2store"
	"github.com/hc2-project/hc2/pkg/hc2types"
)

func testDoc(serviceID string) hc2types.ReceiptDocument {
	return hc2types.ReceiptDocument{
		Claims: hc2types.RegistrationPayload{
			App: "current.ly",
			Service: hc2types.ServiceManifest{
				Name:    "NOOPService",
				Version: "0.0.1",
				Network: hc2types.NetworkSpec{RPCEndpoint: "http://noop_service:3001/rpc"},
			},
		},
		Receipt: hc2types.RegistrationReceipt{
			ReceiptID:   "receipt-" + serviceID,
			ServiceID:   serviceID,
			ServiceName: "NOOPService",
			URN:         "urn:hcp:hc2:service-registration-receipt:" + serviceID,
		},
	}
}

func TestApplyAddsInstance(t *testing.T) {
	p := New(nil, "test-consumer", nil)
	require.NoError(t, p.apply(hc2store.ChangeRecord{ServiceID: "svc-1", Doc: func() *hc2types.ReceiptDocument { d := testDoc("svc-1"); return &d }()}))

	profiles := p.Profiles()
	require.Len(t, profiles, 1)
	require.Equal(t, "NOOPService", profiles[0].Name)
	require.Len(t, profiles[0].Instances, 1)
	require.Equal(t, "http://noop_service:3001/rpc", profiles[0].Instances[0].RPCEndpoint)
}

func TestApplyRemovesInstanceOnDelete(t *testing.T) {
	p := New(nil, "test-consumer", nil)
	doc := testDoc("svc-1")
	require.NoError(t, p.apply(hc2store.ChangeRecord{ServiceID: "svc-1", Doc: &doc}))
	require.Len(t, p.Profiles(), 1)

	require.NoError(t, p.apply(hc2store.ChangeRecord{Deleted: true, ServiceID: "svc-1", LastKnownName: "NOOPService"}))
	require.Empty(t, p.Profiles())
}

func TestApplyIsIdempotentPerReceipt(t *testing.T) {
	p := New(nil, "test-consumer", nil)
	doc := testDoc("svc-1")
	require.NoError(t, p.apply(hc2store.ChangeRecord{ServiceID: "svc-1", Doc: &doc}))
	require.NoError(t, p.apply(hc2store.ChangeRecord{ServiceID: "svc-1", Doc: &doc}))

	profiles := p.Profiles()
	require.Len(t, profiles, 1)
	require.Len(t, profiles[0].Instances, 1)
}
