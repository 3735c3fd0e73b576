package usecase

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Priya8975/marketplace/internal/domain"
	"github.com/Priya8975/marketplace/internal/store"
)

type fakeSponsorStore struct {
	sponsors map[string]store.Sponsor
	links    map[string]bool
}

func newFakeSponsorStore() *fakeSponsorStore {
	return &fakeSponsorStore{sponsors: map[string]store.Sponsor{}, links: map[string]bool{}}
}

func (f *fakeSponsorStore) InsertSponsor(_ context.Context, sp store.Sponsor) error {
	f.sponsors[sp.ID] = sp
	return nil
}

func (f *fakeSponsorStore) GetSponsor(_ context.Context, id domain.SponsorID) (*store.Sponsor, error) {
	sp, ok := f.sponsors[id.String()]
	if !ok {
		return nil, domain.NotFound(fmt.Errorf("sponsor %s not found", id))
	}
	return &sp, nil
}

func (f *fakeSponsorStore) UpdateSponsor(_ context.Context, sp store.Sponsor) error {
	f.sponsors[sp.ID] = sp
	return nil
}

func (f *fakeSponsorStore) AddSponsorToProject(_ context.Context, projectID domain.ProjectID, sponsorID domain.SponsorID) error {
	if _, ok := f.sponsors[sponsorID.String()]; !ok {
		return domain.NotFound(fmt.Errorf("sponsor %s not found", sponsorID))
	}
	f.links[projectID.String()+"/"+sponsorID.String()] = true
	return nil
}

func (f *fakeSponsorStore) RemoveSponsorFromProject(_ context.Context, projectID domain.ProjectID, sponsorID domain.SponsorID) error {
	delete(f.links, projectID.String()+"/"+sponsorID.String())
	return nil
}

func strPtr(s string) *string { return &s }

func TestSponsors(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	fake := newFakeSponsorStore()
	sponsors := NewSponsors(fake, e.projects, testLogger())

	id, err := sponsors.Create(ctx, CreateSponsorRequest{
		Name:    "  Starknet ",
		LogoURL: "https://example.com/logo.png",
		URL:     strPtr("https://starknet.io"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Starknet", fake.sponsors[id.String()].Name)

	require.NoError(t, sponsors.Update(ctx, id, UpdateSponsorRequest{Name: strPtr("StarkWare"), URL: strPtr("")}))
	updated := fake.sponsors[id.String()]
	assert.Equal(t, "StarkWare", updated.Name)
	assert.Equal(t, "https://example.com/logo.png", updated.LogoURL)
	assert.Nil(t, updated.URL)

	projectID := e.project(t)
	require.NoError(t, sponsors.AddToProject(ctx, projectID, id))
	assert.True(t, fake.links[projectID.String()+"/"+id.String()])

	require.NoError(t, sponsors.RemoveFromProject(ctx, projectID, id))
	assert.Empty(t, fake.links)
}

func TestSponsors_Errors(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	sponsors := NewSponsors(newFakeSponsorStore(), e.projects, testLogger())

	_, err := sponsors.Create(ctx, CreateSponsorRequest{Name: "", LogoURL: "https://example.com/logo.png"})
	assert.Equal(t, domain.KindInvalidInputs, domain.KindOf(err))

	_, err = sponsors.Create(ctx, CreateSponsorRequest{Name: "Acme", LogoURL: "logo.png"})
	assert.Equal(t, domain.KindInvalidInputs, domain.KindOf(err))

	err = sponsors.Update(ctx, domain.NewSponsorID(), UpdateSponsorRequest{Name: strPtr("x")})
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))

	err = sponsors.AddToProject(ctx, domain.NewProjectID(), domain.NewSponsorID())
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))

	err = sponsors.AddToProject(ctx, e.project(t), domain.NewSponsorID())
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
}

func TestKeyedMutex(t *testing.T) {
	k := newKeyedMutex()
	unlockA := k.Lock("a")
	unlockB := k.Lock("b")
	assert.Equal(t, 2, k.size())

	done := make(chan struct{})
	go func() {
		unlock := k.Lock("a")
		unlock()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("second lock on a key should wait")
	default:
	}

	unlockA()
	<-done
	unlockB()
	assert.Equal(t, 0, k.size())
}
