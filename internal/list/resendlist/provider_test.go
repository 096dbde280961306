package resendlist_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/resend/resend-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/mailinglist/internal/list"
	"github.com/unclebandit/mailinglist/internal/list/resendlist"
	"github.com/unclebandit/mailinglist/internal/model"
)

// fakeResend serves the subset of the Resend API the provider uses.
type fakeResend struct {
	mu         sync.Mutex
	down       bool
	nextID     int
	contacts   map[string]*resend.Contact
	broadcasts map[string]*resend.Broadcast
	emails     []resend.SendEmailRequest
}

func newFakeResend(t *testing.T) (*fakeResend, *resendlist.Provider) {
	t.Helper()
	f := &fakeResend{
		contacts:   map[string]*resend.Contact{},
		broadcasts: map[string]*resend.Broadcast{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /audiences/{aud}", f.getAudience)
	mux.HandleFunc("GET /audiences/{aud}/contacts/{id}", f.getContact)
	mux.HandleFunc("POST /audiences/{aud}/contacts", f.createContact)
	mux.HandleFunc("PATCH /audiences/{aud}/contacts/{id}", f.updateContact)
	mux.HandleFunc("POST /emails", f.sendEmail)
	mux.HandleFunc("GET /broadcasts", f.listBroadcasts)
	mux.HandleFunc("POST /broadcasts", f.createBroadcast)
	mux.HandleFunc("PATCH /broadcasts/{id}", f.updateBroadcast)
	mux.HandleFunc("DELETE /broadcasts/{id}", f.removeBroadcast)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client := resend.NewCustomClient(resendlist.NewHTTPClient(nil), "re_test")
	base, err := url.Parse(srv.URL + "/")
	require.NoError(t, err)
	client.BaseURL = base

	return f, resendlist.NewWithClient(client, resendlist.Config{
		AudienceID:     "aud_1",
		From:           "News <news@example.com>",
		WelcomeSubject: "Welcome",
		WelcomeText:    "Thanks for joining",
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func notFound(w http.ResponseWriter, what string) {
	writeJSON(w, http.StatusNotFound, map[string]any{
		"statusCode": 404, "name": "not_found", "message": what + " not found",
	})
}

func (f *fakeResend) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s_%d", prefix, f.nextID)
}

func (f *fakeResend) lookup(idOrEmail string) *resend.Contact {
	for _, c := range f.contacts {
		if c.Id == idOrEmail || c.Email == idOrEmail {
			return c
		}
	}
	return nil
}

func (f *fakeResend) getAudience(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"message": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, resend.Audience{Id: r.PathValue("aud"), Name: "news"})
}

func (f *fakeResend) getContact(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.lookup(r.PathValue("id"))
	if c == nil {
		notFound(w, "Contact")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (f *fakeResend) createContact(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var req resend.CreateContactRequest
	json.NewDecoder(r.Body).Decode(&req)
	c := &resend.Contact{Id: f.id("ct"), Email: req.Email, FirstName: req.FirstName, LastName: req.LastName}
	f.contacts[c.Id] = c
	writeJSON(w, http.StatusCreated, map[string]string{"object": "contact", "id": c.Id})
}

func (f *fakeResend) updateContact(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.lookup(r.PathValue("id"))
	if c == nil {
		notFound(w, "Contact")
		return
	}
	var body map[string]any
	json.NewDecoder(r.Body).Decode(&body)
	if v, ok := body["first_name"].(string); ok {
		c.FirstName = v
	}
	if v, ok := body["last_name"].(string); ok {
		c.LastName = v
	}
	if v, ok := body["unsubscribed"].(bool); ok {
		c.Unsubscribed = v
	}
	writeJSON(w, http.StatusOK, map[string]string{"object": "contact", "id": c.Id})
}

func (f *fakeResend) sendEmail(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var req resend.SendEmailRequest
	json.NewDecoder(r.Body).Decode(&req)
	f.emails = append(f.emails, req)
	writeJSON(w, http.StatusOK, map[string]string{"id": f.id("em")})
}

func (f *fakeResend) listBroadcasts(w http.ResponseWriter, _ *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data := []resend.Broadcast{}
	for _, b := range f.broadcasts {
		data = append(data, *b)
	}
	writeJSON(w, http.StatusOK, resend.ListBroadcastsResponse{Object: "list", Data: data})
}

func (f *fakeResend) createBroadcast(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var req resend.CreateBroadcastRequest
	json.NewDecoder(r.Body).Decode(&req)
	b := &resend.Broadcast{
		Id: f.id("bc"), Name: req.Name, AudienceId: req.AudienceId, From: req.From,
		Subject: req.Subject, Html: req.Html, Text: req.Text,
	}
	f.broadcasts[b.Id] = b
	writeJSON(w, http.StatusOK, map[string]string{"id": b.Id})
}

func (f *fakeResend) updateBroadcast(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.broadcasts[r.PathValue("id")]
	if !ok {
		notFound(w, "Broadcast")
		return
	}
	var req resend.UpdateBroadcastRequest
	json.NewDecoder(r.Body).Decode(&req)
	b.Subject, b.Html, b.Text, b.From = req.Subject, req.Html, req.Text, req.From
	writeJSON(w, http.StatusOK, map[string]string{"id": b.Id})
}

func (f *fakeResend) removeBroadcast(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.broadcasts, r.PathValue("id"))
	writeJSON(w, http.StatusOK, resend.RemoveBroadcastResponse{Object: "broadcast", Id: r.PathValue("id"), Deleted: true})
}

func TestPingReflectsAudience(t *testing.T) {
	f, p := newFakeResend(t)
	require.NoError(t, p.Ping(context.Background()))

	f.down = true
	assert.Error(t, p.Ping(context.Background()))
}

func TestSubscribeCreatesContactAndWelcomes(t *testing.T) {
	f, p := newFakeResend(t)
	ctx := context.Background()

	err := p.Subscribe(ctx, model.Subscriber{
		Address: "ada@example.com",
		Info:    map[string]string{resendlist.FieldFirstName: "Ada", resendlist.FieldLastName: "Lovelace"},
	}, true)
	require.NoError(t, err)

	c := f.lookup("ada@example.com")
	require.NotNil(t, c)
	assert.Equal(t, "Ada", c.FirstName)
	assert.Equal(t, "Lovelace", c.LastName)

	require.Len(t, f.emails, 1)
	assert.Equal(t, []string{"ada@example.com"}, f.emails[0].To)
	assert.Equal(t, "Welcome", f.emails[0].Subject)

	member, err := p.IsMember(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.True(t, member)

	// existing members are not welcomed twice
	require.NoError(t, p.Subscribe(ctx, model.Subscriber{Address: "ada@example.com"}, true))
	assert.Len(t, f.emails, 1)
}

func TestUnsubscribeStates(t *testing.T) {
	f, p := newFakeResend(t)
	ctx := context.Background()

	assert.ErrorIs(t, p.Unsubscribe(ctx, "ghost@example.com"), list.ErrNotMember)

	require.NoError(t, p.Subscribe(ctx, model.Subscriber{Address: "ada@example.com"}, false))
	require.NoError(t, p.Unsubscribe(ctx, "ada@example.com"))
	assert.True(t, f.lookup("ada@example.com").Unsubscribed)
	assert.ErrorIs(t, p.Unsubscribe(ctx, "ada@example.com"), list.ErrAlreadyUnsubscribed)

	member, err := p.IsMember(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.False(t, member)

	require.NoError(t, p.Subscribe(ctx, model.Subscriber{Address: "ada@example.com"}, false))
	assert.False(t, f.lookup("ada@example.com").Unsubscribed)
}

func TestUpdateContact(t *testing.T) {
	f, p := newFakeResend(t)
	ctx := context.Background()

	assert.ErrorIs(t, p.Update(ctx, model.Subscriber{Address: "ghost@example.com"}), list.ErrNotMember)

	require.NoError(t, p.Subscribe(ctx, model.Subscriber{Address: "ada@example.com"}, false))
	require.NoError(t, p.Update(ctx, model.Subscriber{
		Address: "ada@example.com",
		Info:    map[string]string{resendlist.FieldFirstName: "Augusta"},
	}))
	assert.Equal(t, "Augusta", f.lookup("ada@example.com").FirstName)
}

func TestSaveCampaignUpsertsBroadcast(t *testing.T) {
	f, p := newFakeResend(t)
	ctx := context.Background()

	content := &model.CampaignContent{
		Shortname: "spring",
		Title:     "spring",
		Metadata:  model.CampaignMetadata{Subject: "Spring news", FromName: "Shop", FromAddress: "shop@example.com"},
		XHTML:     "<html/>",
		Text:      "hello",
	}
	require.NoError(t, p.SaveCampaign(ctx, content))
	require.Len(t, f.broadcasts, 1)

	content.Text = "hello again"
	require.NoError(t, p.SaveCampaign(ctx, content))
	require.Len(t, f.broadcasts, 1)

	for _, b := range f.broadcasts {
		assert.Equal(t, "Spring news", b.Subject)
		assert.Equal(t, "hello again", b.Text)
		assert.Equal(t, `"Shop" <shop@example.com>`, b.From)
	}

	require.NoError(t, p.DeleteCampaign(ctx, "spring"))
	assert.Empty(t, f.broadcasts)
	require.NoError(t, p.DeleteCampaign(ctx, "spring"))
}

func TestGatewayOverResend(t *testing.T) {
	f, p := newFakeResend(t)
	gw := list.NewFallbackGateway(p, nil, list.Config{TenantID: 1})
	ctx := context.Background()

	assert.Equal(t, model.NotFound, gw.Unsubscribe(ctx, "ghost@example.com"))
	assert.Equal(t, model.Success, gw.Subscribe(ctx, "ada@example.com", map[string]string{"first": "Ada"}, false,
		model.FieldMap{"first": resendlist.FieldFirstName}))
	assert.Equal(t, "Ada", f.lookup("ada@example.com").FirstName)
	assert.Equal(t, model.Success, gw.Unsubscribe(ctx, "ada@example.com"))
	assert.Equal(t, model.NotSubscribed, gw.Unsubscribe(ctx, "ada@example.com"))
}
