package adapter

import (
	"context"

	"nexus-commission/internal/pkg/httpclient"
	"nexus-commission/internal/service/commission/domain"
)

// CRMContactSink 实现了 port.ContactSink，把客户联系人推送到外部 CRM 的 webhook
type CRMContactSink struct {
	client     *httpclient.Client
	webhookURL string
}

func NewCRMContactSink(client *httpclient.Client, webhookURL string) *CRMContactSink {
	return &CRMContactSink{client: client, webhookURL: webhookURL}
}

func (s *CRMContactSink) SyncContact(ctx context.Context, contact domain.ContactRecord) error {
	return s.client.PostJSON(ctx, s.webhookURL, contact)
}
