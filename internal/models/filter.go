package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const DateLayout = "2006-01-02"

// Filter scopes candidate pools and suggestions to a tenant, an optional
// account and an inclusive date range. Zero dates leave that end open.
type Filter struct {
	TenantID  uuid.UUID
	AccountID *uuid.UUID
	From      time.Time
	To        time.Time
}

// Key identifies the filter in caches.
func (f Filter) Key() string {
	parts := []string{AccountTag(f.TenantID, f.AccountID), "from", formatDate(f.From), "to", formatDate(f.To)}
	return strings.Join(parts, ":")
}

func (f Filter) Tags() []string {
	return []string{AccountTag(f.TenantID, f.AccountID)}
}

// AccountTag is the invalidation tag for pools of one account. A nil account
// tags pools that span every account of the tenant.
func AccountTag(tenantID uuid.UUID, accountID *uuid.UUID) string {
	account := "*"
	if accountID != nil {
		account = accountID.String()
	}
	return "tenant:" + tenantID.String() + ":account:" + account
}

// PoolTags returns the tags to invalidate after entries of the given accounts
// change, including the tenant-wide pools.
func PoolTags(tenantID uuid.UUID, accountIDs ...uuid.UUID) []string {
	seen := make(map[uuid.UUID]struct{}, len(accountIDs))
	tags := []string{AccountTag(tenantID, nil)}
	for _, id := range accountIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		tags = append(tags, AccountTag(tenantID, &id))
	}
	return tags
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(DateLayout)
}
