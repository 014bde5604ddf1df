package users

import (
	"encoding/json"
	"strings"
	"testing"

	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestProfileOmitsDigest(t *testing.T) {
	u := &User{
		ID:           bson.NewObjectID(),
		Email:        "a@b.com",
		PasswordHash: "$2a$10$abcdefghijklmnopqrstuv",
		Name:         "Alice",
	}

	data, err := json.Marshal(u.Profile())
	if err != nil {
		t.Fatalf("failed to marshal profile: %v", err)
	}

	body := string(data)
	if strings.Contains(body, "passwordHash") || strings.Contains(body, u.PasswordHash) {
		t.Fatalf("profile must not expose the digest: %s", body)
	}
	if !strings.Contains(body, `"id":"`+u.ID.Hex()+`"`) {
		t.Fatalf("profile must carry the hex id: %s", body)
	}
	if !strings.Contains(body, `"email":"a@b.com"`) {
		t.Fatalf("profile must carry the email: %s", body)
	}
}

func TestProfileOmitsEmptyOptionalFields(t *testing.T) {
	u := &User{ID: bson.NewObjectID(), Email: "a@b.com", PasswordHash: "digest"}

	data, err := json.Marshal(u.Profile())
	if err != nil {
		t.Fatalf("failed to marshal profile: %v", err)
	}

	for _, field := range []string{"photo", "name", "bio", "phone"} {
		if strings.Contains(string(data), field) {
			t.Fatalf("empty optional field %q must be omitted: %s", field, data)
		}
	}
}
