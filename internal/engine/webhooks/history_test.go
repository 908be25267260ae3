package webhooks

import "testing"

func TestDeliveryHistory_Pagination(t *testing.T) {
	env := newTestEnv(t)

	created, _, _ := env.registry.Create("org_1", "ops", "https://example.com", []string{EventAll}, nil)

	// Spread created_at so the newest-first ordering is deterministic.
	for i := 0; i < 5; i++ {
		d := newDelivery(created.ID, EventSpacecraftCreated)
		if err := env.deliveries.Create(d); err != nil {
			t.Fatalf("Create() error: %v", err)
		}
		if _, err := env.db.Exec(`UPDATE webhook_deliveries SET created_at = ? WHERE id = ?`, 1000+i, d.ID); err != nil {
			t.Fatalf("update: %v", err)
		}
	}

	total, err := env.deliveries.CountByWebhook(created.ID)
	if err != nil {
		t.Fatalf("CountByWebhook() error: %v", err)
	}
	if total != 5 {
		t.Fatalf("total = %d, want 5", total)
	}

	page1, err := env.deliveries.ListByWebhook(created.ID, 2, 0)
	if err != nil {
		t.Fatalf("ListByWebhook() error: %v", err)
	}
	if len(page1) != 2 {
		t.Fatalf("page 1 size = %d, want 2", len(page1))
	}
	if page1[0].CreatedAt != 1004 || page1[1].CreatedAt != 1003 {
		t.Errorf("page 1 not newest-first: %d, %d", page1[0].CreatedAt, page1[1].CreatedAt)
	}

	page3, err := env.deliveries.ListByWebhook(created.ID, 2, 4)
	if err != nil {
		t.Fatalf("ListByWebhook() error: %v", err)
	}
	if len(page3) != 1 {
		t.Fatalf("last page size = %d, want 1", len(page3))
	}
	if page3[0].CreatedAt != 1000 {
		t.Errorf("last page entry created_at = %d, want 1000", page3[0].CreatedAt)
	}

	seen := map[string]bool{}
	for page := 0; page < 3; page++ {
		list, _ := env.deliveries.ListByWebhook(created.ID, 2, page*2)
		for _, d := range list {
			if seen[d.ID] {
				t.Fatalf("delivery %s returned on two pages", d.ID)
			}
			seen[d.ID] = true
		}
	}
	if len(seen) != 5 {
		t.Errorf("paging visited %d deliveries, want 5", len(seen))
	}
}
