package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/inspectra/internal/models"
)

func TestStorage_Chat(t *testing.T) {
	storage := setupTestDatabase(t)
	f := NewTestDataFactory(t, storage)
	ctx := context.Background()

	realtor := f.User("realtor@example.com", models.RoleRealtor)
	client := f.User("client@example.com", models.RoleClient)
	property := f.Property("Two bedroom flat, Lekki", realtor)

	t.Run("get or create room is idempotent", func(t *testing.T) {
		first, err := storage.GetOrCreateRoom(ctx, property, client, realtor)
		require.NoError(t, err)
		second, err := storage.GetOrCreateRoom(ctx, property, client, realtor)
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)

		var rooms int
		require.NoError(t, storage.DB.QueryRow(`SELECT COUNT(*) FROM chat_rooms`).Scan(&rooms))
		assert.Equal(t, 1, rooms)
	})

	t.Run("messages are ordered and seen is per reader", func(t *testing.T) {
		room, err := storage.GetOrCreateRoom(ctx, property, client, realtor)
		require.NoError(t, err)

		hello, err := storage.CreateMessage(ctx, room.ID, models.Sender{Kind: models.SenderUser, ID: client}, "hello")
		require.NoError(t, err)
		hi, err := storage.CreateMessage(ctx, room.ID, models.Sender{Kind: models.SenderUser, ID: realtor}, "hi")
		require.NoError(t, err)

		msgs, err := storage.ListMessages(ctx, room.ID)
		require.NoError(t, err)
		require.Len(t, msgs, 2)
		assert.Equal(t, []string{"hello", "hi"}, []string{msgs[0].Content, msgs[1].Content})

		n, err := storage.MarkSeen(ctx, room.ID, realtor)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		msgs, err = storage.ListMessages(ctx, room.ID)
		require.NoError(t, err)
		seen := map[string]bool{}
		for _, m := range msgs {
			seen[m.ID] = m.Seen
		}
		assert.True(t, seen[hello.ID], "message authored by client is seen by realtor")
		assert.False(t, seen[hi.ID], "reader's own message is untouched")

		n, err = storage.MarkSeen(ctx, room.ID, realtor)
		require.NoError(t, err)
		assert.Zero(t, n, "mark seen is idempotent")
	})

	t.Run("equal timestamps keep insertion order", func(t *testing.T) {
		otherClient := f.User("other@example.com", models.RoleClient)
		room, err := storage.GetOrCreateRoom(ctx, property, otherClient, realtor)
		require.NoError(t, err)

		at := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
		for _, text := range []string{"a", "b", "c"} {
			_, err := storage.DB.Exec(`INSERT INTO messages (chatroom_id, sender_id, sender_kind, content, created_at)
				VALUES ($1, $2, 'User', $3, $4)`, room.ID, otherClient, text, at)
			require.NoError(t, err)
		}

		msgs, err := storage.ListMessages(ctx, room.ID)
		require.NoError(t, err)
		require.Len(t, msgs, 3)
		assert.Equal(t, []string{"a", "b", "c"}, []string{msgs[0].Content, msgs[1].Content, msgs[2].Content})
	})

	t.Run("message to unknown room is not found", func(t *testing.T) {
		_, err := storage.CreateMessage(ctx, uuid.NewString(), models.Sender{Kind: models.SenderUser, ID: client}, "x")
		require.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("room summary and listing with counterpart", func(t *testing.T) {
		room, err := storage.GetOrCreateRoom(ctx, property, client, realtor)
		require.NoError(t, err)
		require.NoError(t, storage.UpdateRoomSummary(ctx, room.ID, "latest", time.Now().Add(time.Minute)))

		forClient, err := storage.ListRoomsForUser(ctx, client, models.RoomRoleClient)
		require.NoError(t, err)
		require.Len(t, forClient, 1)
		assert.Equal(t, "latest", forClient[0].LastMessage)
		assert.Equal(t, realtor, forClient[0].Counterpart.ID)
		assert.Equal(t, "realtor@example.com", forClient[0].Counterpart.Email)
		assert.Equal(t, "Two bedroom flat, Lekki", forClient[0].PropertyTitle)

		forRealtor, err := storage.ListRoomsForUser(ctx, realtor, models.RoomRoleRealtor)
		require.NoError(t, err)
		assert.Len(t, forRealtor, 2)
		assert.Equal(t, room.ID, forRealtor[0].ID, "most recent conversation first")
	})

	t.Run("guest counterpart", func(t *testing.T) {
		guest, err := storage.UpsertGuest(ctx, "Ada", "Ada@Example.com", "token-1")
		require.NoError(t, err)
		again, err := storage.UpsertGuest(ctx, "Ada L.", "ada@example.com", "token-2")
		require.NoError(t, err)
		assert.Equal(t, guest.ID, again.ID)
		assert.Equal(t, "token-1", again.ChatAccessToken, "token is immutable once issued")

		byToken, err := storage.GetGuestByToken(ctx, "token-1")
		require.NoError(t, err)
		assert.Equal(t, guest.ID, byToken.ID)

		_, err = storage.GetOrCreateRoom(ctx, property, guest.ID, realtor)
		require.NoError(t, err)
		rooms, err := storage.ListRoomsForUser(ctx, realtor, models.RoomRoleRealtor)
		require.NoError(t, err)

		var found bool
		for _, r := range rooms {
			if r.ClientID == guest.ID {
				found = true
				assert.Equal(t, models.SenderGuest, r.Counterpart.Kind)
				assert.Equal(t, "Ada", r.Counterpart.Name)
			}
		}
		assert.True(t, found)
	})

	t.Run("property without realtor is not found", func(t *testing.T) {
		_, err := storage.GetProperty(ctx, uuid.NewString())
		require.ErrorIs(t, err, models.ErrNotFound)
	})
}
