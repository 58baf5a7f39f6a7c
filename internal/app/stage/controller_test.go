package stage

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/dkeye/livestage/internal/adapters/lock"
	"github.com/dkeye/livestage/internal/adapters/memory"
	"github.com/dkeye/livestage/internal/captoken"
	"github.com/dkeye/livestage/internal/core"
	"github.com/dkeye/livestage/internal/domain"
	"github.com/dkeye/livestage/internal/metadata"
)

type stubMedia struct {
	mu     sync.Mutex
	grants []core.MediaGrant
	fail   error
}

func (s *stubMedia) MediaToken(g core.MediaGrant) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return "", s.fail
	}
	s.grants = append(s.grants, g)
	return "media:" + string(g.Identity), nil
}

func (s *stubMedia) WSURL() string { return "wss://media.test" }

func (s *stubMedia) last() core.MediaGrant {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.grants[len(s.grants)-1]
}

type recorder struct {
	mu     sync.Mutex
	events []domain.StageEvent
}

func (r *recorder) Publish(_ domain.RoomName, ev domain.StageEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

type fixture struct {
	ctl    *Controller
	dir    *memory.Directory
	ingest *memory.Ingress
	media  *stubMedia
	tokens *captoken.Codec
	events *recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	tokens, err := captoken.NewCodec("stage-test-secret-0123456789")
	if err != nil {
		t.Fatal(err)
	}
	f := &fixture{
		dir:    memory.NewDirectory(),
		ingest: memory.NewIngress("rtmp://ingest.test"),
		media:  &stubMedia{},
		tokens: tokens,
		events: &recorder{},
	}
	f.ctl = &Controller{
		Directory: f.dir,
		Ingress:   f.ingest,
		Media:     f.media,
		Tokens:    tokens,
		Locks:     lock.NewLocal(),
		Events:    f.events,
	}
	return f
}

// host creates room abcd-1234 owned by host1 and connects viewer1 and viewer3.
func (f *fixture) host(t *testing.T) (host, viewer1 domain.Session) {
	t.Helper()
	ctx := context.Background()
	res, err := f.ctl.CreateStream(ctx, CreateStreamRequest{
		RoomName: "abcd-1234",
		Metadata: domain.RoomMetadata{CreatorIdentity: "host1", EnableChat: true, AllowParticipation: true},
	})
	if err != nil {
		t.Fatalf("CreateStream: %v", err)
	}
	host = f.session(t, res.AuthToken)
	f.dir.Connect("abcd-1234", domain.Participant{Identity: "host1", Permission: domain.HostPermission()})

	for _, id := range []string{"viewer1", "viewer3"} {
		res, err := f.ctl.JoinStream(ctx, JoinStreamRequest{RoomName: "abcd-1234", Identity: id})
		if err != nil {
			t.Fatalf("JoinStream(%s): %v", id, err)
		}
		f.dir.Connect("abcd-1234", domain.Participant{Identity: domain.Identity(id), Permission: domain.ViewerPermission()})
		if id == "viewer1" {
			viewer1 = f.session(t, res.AuthToken)
		}
	}
	return host, viewer1
}

func (f *fixture) session(t *testing.T, token string) domain.Session {
	t.Helper()
	s, err := f.tokens.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	return s
}

func (f *fixture) state(t *testing.T, id domain.Identity) (domain.ParticipantMetadata, domain.Permission) {
	t.Helper()
	p, err := f.dir.GetParticipant(context.Background(), "abcd-1234", id)
	if err != nil {
		t.Fatalf("GetParticipant(%s): %v", id, err)
	}
	m, _ := metadata.ParseOrCreateParticipantMetadata(p)
	return m, p.Permission
}

func TestCreateStreamGrantsHost(t *testing.T) {
	f := newFixture(t)
	res, err := f.ctl.CreateStream(context.Background(), CreateStreamRequest{
		Metadata: domain.RoomMetadata{CreatorIdentity: "host1"},
	})
	if err != nil {
		t.Fatalf("CreateStream: %v", err)
	}
	s := f.session(t, res.AuthToken)
	if !domain.IsGeneratedRoomName(s.RoomName) || s.Identity != "host1" {
		t.Fatalf("session = %+v", s)
	}
	g := f.media.last()
	if g.Permission != domain.HostPermission() || g.Name != "host1" {
		t.Fatalf("grant = %+v", g)
	}
	if res.ConnectionDetails.WSURL != "wss://media.test" || res.ConnectionDetails.Token != "media:host1" {
		t.Fatalf("connection details = %+v", res.ConnectionDetails)
	}

	rooms, _ := f.dir.ListRooms(context.Background(), []domain.RoomName{s.RoomName})
	meta, usedDefault := metadata.ParseRoomMetadata(rooms[0].Metadata, domain.RoomMetadata{})
	if usedDefault || meta.CreatorIdentity != "host1" {
		t.Fatalf("room metadata = %+v (default %v)", meta, usedDefault)
	}
}

func TestCreateStreamOverwritesMetadata(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := CreateStreamRequest{RoomName: "abcd-1234", Metadata: domain.RoomMetadata{CreatorIdentity: "host1", EnableChat: true}}
	if _, err := f.ctl.CreateStream(ctx, req); err != nil {
		t.Fatal(err)
	}
	req.Metadata = domain.RoomMetadata{CreatorIdentity: "host2"}
	if _, err := f.ctl.CreateStream(ctx, req); err != nil {
		t.Fatal(err)
	}
	rooms, _ := f.dir.ListRooms(ctx, []domain.RoomName{"abcd-1234"})
	meta, _ := metadata.ParseRoomMetadata(rooms[0].Metadata, domain.RoomMetadata{})
	if meta.CreatorIdentity != "host2" || meta.EnableChat {
		t.Fatalf("metadata merged instead of overwritten: %+v", meta)
	}
}

func TestCreateStreamValidation(t *testing.T) {
	f := newFixture(t)
	_, err := f.ctl.CreateStream(context.Background(), CreateStreamRequest{})
	if !domain.IsKind(err, domain.KindInvalidArgument) {
		t.Fatalf("missing creator err = %v", err)
	}
}

func TestScenarioA_RaiseThenInvite(t *testing.T) {
	f := newFixture(t)
	host, viewer1 := f.host(t)
	ctx := context.Background()

	if g := f.media.last(); g.Permission.CanPublish || !g.Permission.CanSubscribe || !g.Permission.CanPublishData {
		t.Fatalf("viewer grant = %+v", g.Permission)
	}
	m, _ := f.state(t, "viewer1")
	if m.HandRaised || m.InvitedToStage {
		t.Fatalf("fresh viewer state = %+v", m)
	}

	st, err := f.ctl.RaiseHand(ctx, viewer1)
	if err != nil {
		t.Fatalf("RaiseHand: %v", err)
	}
	if st.State != domain.StageHandRaised || st.Permission.CanPublish {
		t.Fatalf("after raise = %+v", st)
	}

	st, err = f.ctl.InviteToStage(ctx, host, "viewer1")
	if err != nil {
		t.Fatalf("InviteToStage: %v", err)
	}
	if st.State != domain.StageOnStage || !st.Permission.CanPublish {
		t.Fatalf("after invite = %+v", st)
	}
	m, p := f.state(t, "viewer1")
	if !m.HandRaised || !m.InvitedToStage || !p.CanPublish {
		t.Fatalf("stored = %+v %+v", m, p)
	}
	if m.AvatarImage != metadata.DefaultAvatar("viewer1") {
		t.Fatalf("avatar = %q", m.AvatarImage)
	}
}

func TestScenarioB_InviteThenRaise(t *testing.T) {
	f := newFixture(t)
	host, viewer1 := f.host(t)
	ctx := context.Background()

	st, err := f.ctl.InviteToStage(ctx, host, "viewer1")
	if err != nil {
		t.Fatalf("InviteToStage: %v", err)
	}
	if st.State != domain.StageInvited || st.Permission.CanPublish {
		t.Fatalf("after invite = %+v", st)
	}
	st, err = f.ctl.RaiseHand(ctx, viewer1)
	if err != nil {
		t.Fatalf("RaiseHand: %v", err)
	}
	if st.State != domain.StageOnStage || !st.Permission.CanPublish {
		t.Fatalf("after raise = %+v", st)
	}
}

func TestScenarioC_DuplicateJoin(t *testing.T) {
	f := newFixture(t)
	_, viewer1 := f.host(t)
	ctx := context.Background()
	if _, err := f.ctl.RaiseHand(ctx, viewer1); err != nil {
		t.Fatal(err)
	}
	before, beforePerm := f.state(t, "viewer1")

	_, err := f.ctl.JoinStream(ctx, JoinStreamRequest{RoomName: "abcd-1234", Identity: "viewer1", Name: "viewer2"})
	if !domain.IsKind(err, domain.KindConflict) {
		t.Fatalf("duplicate join err = %v, want Conflict", err)
	}
	after, afterPerm := f.state(t, "viewer1")
	if before != after || beforePerm != afterPerm {
		t.Fatalf("existing participant changed: %+v -> %+v", before, after)
	}
}

func TestScenarioD_RemoveSelfAndOthers(t *testing.T) {
	f := newFixture(t)
	host, viewer1 := f.host(t)
	ctx := context.Background()
	_, _ = f.ctl.InviteToStage(ctx, host, "viewer1")
	_, _ = f.ctl.RaiseHand(ctx, viewer1)

	st, err := f.ctl.RemoveFromStage(ctx, viewer1, "")
	if err != nil {
		t.Fatalf("self remove: %v", err)
	}
	if st.State != domain.StageIdle || st.Permission.CanPublish || st.Identity != "viewer1" {
		t.Fatalf("after self remove = %+v", st)
	}

	_, err = f.ctl.RemoveFromStage(ctx, viewer1, "viewer3")
	if !domain.IsKind(err, domain.KindForbidden) {
		t.Fatalf("remove other err = %v, want Forbidden", err)
	}
	if domain.MessageOf(err) != "Only the creator or the participant themself can remove from stage" {
		t.Fatalf("message = %q", domain.MessageOf(err))
	}

	// creator may remove anyone
	if _, err := f.ctl.RemoveFromStage(ctx, host, "viewer3"); err != nil {
		t.Fatalf("creator remove: %v", err)
	}
}

func TestScenarioE_StopStream(t *testing.T) {
	f := newFixture(t)
	host, viewer1 := f.host(t)
	ctx := context.Background()

	if err := f.ctl.StopStream(ctx, viewer1); !domain.IsKind(err, domain.KindForbidden) {
		t.Fatalf("viewer stop err = %v, want Forbidden", err)
	}
	if err := f.ctl.StopStream(ctx, host); err != nil {
		t.Fatalf("StopStream: %v", err)
	}
	for _, id := range []domain.Identity{"host1", "viewer1", "viewer3"} {
		if _, err := f.dir.GetParticipant(ctx, "abcd-1234", id); !domain.IsKind(err, domain.KindNotFound) {
			t.Errorf("GetParticipant(%s) err = %v, want NotFound", id, err)
		}
	}
	if _, err := f.ctl.RaiseHand(ctx, viewer1); !domain.IsKind(err, domain.KindNotFound) {
		t.Fatalf("raise after stop err = %v", err)
	}
	last := f.events.events[len(f.events.events)-1]
	if last.Type != domain.EventStreamStopped {
		t.Fatalf("last event = %+v", last)
	}
}

func TestNonCreatorInviteLeavesTargetUntouched(t *testing.T) {
	f := newFixture(t)
	_, viewer1 := f.host(t)
	ctx := context.Background()
	before, beforePerm := f.state(t, "viewer3")

	_, err := f.ctl.InviteToStage(ctx, viewer1, "viewer3")
	if !domain.IsKind(err, domain.KindForbidden) || domain.MessageOf(err) != "Only the creator can invite to stage" {
		t.Fatalf("err = %v", err)
	}
	after, afterPerm := f.state(t, "viewer3")
	if before != after || beforePerm != afterPerm {
		t.Fatalf("target changed: %+v -> %+v", before, after)
	}
}

func TestRaiseHandIdempotentThroughDirectory(t *testing.T) {
	f := newFixture(t)
	_, viewer1 := f.host(t)
	ctx := context.Background()

	first, err := f.ctl.RaiseHand(ctx, viewer1)
	if err != nil {
		t.Fatal(err)
	}
	second, err := f.ctl.RaiseHand(ctx, viewer1)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Fatalf("second raise changed state: %+v -> %+v", first, second)
	}
}

func TestJoinStreamErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.ctl.JoinStream(ctx, JoinStreamRequest{RoomName: "nope-0000", Identity: "v"}); !domain.IsKind(err, domain.KindNotFound) {
		t.Fatalf("unknown room err = %v", err)
	}
	if _, err := f.ctl.JoinStream(ctx, JoinStreamRequest{RoomName: "abcd-1234"}); !domain.IsKind(err, domain.KindInvalidArgument) {
		t.Fatalf("missing identity err = %v", err)
	}
}

func TestDirectoryUnavailablePropagates(t *testing.T) {
	f := newFixture(t)
	_, viewer1 := f.host(t)
	f.dir.SetOffline(true)

	_, err := f.ctl.RaiseHand(context.Background(), viewer1)
	if !domain.IsKind(err, domain.KindUnavailable) {
		t.Fatalf("err = %v, want Unavailable", err)
	}
	if !errors.Is(err, memory.ErrUnavailable) {
		t.Fatal("cause lost")
	}
}

func TestCorruptRoomMetadataRefusesCreatorActions(t *testing.T) {
	f := newFixture(t)
	host, _ := f.host(t)
	if err := f.dir.UpdateRoomMetadata(context.Background(), "abcd-1234", "{not json"); err != nil {
		t.Fatal(err)
	}
	_, err := f.ctl.InviteToStage(context.Background(), host, "viewer1")
	if !domain.IsKind(err, domain.KindForbidden) {
		t.Fatalf("err = %v, want Forbidden", err)
	}
}

func TestCorruptParticipantMetadataDefaults(t *testing.T) {
	f := newFixture(t)
	_, viewer1 := f.host(t)
	ctx := context.Background()
	if _, err := f.dir.UpdateParticipant(ctx, "abcd-1234", "viewer1", "garbage", domain.ViewerPermission()); err != nil {
		t.Fatal(err)
	}
	st, err := f.ctl.RaiseHand(ctx, viewer1)
	if err != nil {
		t.Fatalf("RaiseHand: %v", err)
	}
	if st.State != domain.StageHandRaised || st.Metadata.AvatarImage != metadata.DefaultAvatar("viewer1") {
		t.Fatalf("status = %+v", st)
	}
}

func TestConcurrentGrantsConverge(t *testing.T) {
	f := newFixture(t)
	host, viewer1 := f.host(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); _, _ = f.ctl.RaiseHand(ctx, viewer1) }()
	go func() { defer wg.Done(); _, _ = f.ctl.InviteToStage(ctx, host, "viewer1") }()
	wg.Wait()

	m, p := f.state(t, "viewer1")
	if !m.HandRaised || !m.InvitedToStage || !p.CanPublish {
		t.Fatalf("lost update: %+v %+v", m, p)
	}
}

func TestEventsPublished(t *testing.T) {
	f := newFixture(t)
	host, viewer1 := f.host(t)
	ctx := context.Background()
	_, _ = f.ctl.RaiseHand(ctx, viewer1)
	_, _ = f.ctl.InviteToStage(ctx, host, "viewer1")

	if len(f.events.events) != 2 {
		t.Fatalf("events = %+v", f.events.events)
	}
	ev := f.events.events[1]
	if ev.Type != domain.EventInvited || ev.Identity != "viewer1" || ev.Actor != "host1" || !ev.CanPublish {
		t.Fatalf("event = %+v", ev)
	}
}

func TestRoomView(t *testing.T) {
	f := newFixture(t)
	_, viewer1 := f.host(t)
	_, _ = f.ctl.RaiseHand(context.Background(), viewer1)

	view, err := f.ctl.Room(context.Background(), viewer1)
	if err != nil {
		t.Fatalf("Room: %v", err)
	}
	if view.Metadata.CreatorIdentity != "host1" || !view.Metadata.EnableChat {
		t.Fatalf("metadata = %+v", view.Metadata)
	}
	if view.Self.State != domain.StageHandRaised {
		t.Fatalf("self = %+v", view.Self)
	}
}

func TestMemoryDriverAdmitsOnTokenMint(t *testing.T) {
	f := newFixture(t)
	f.ctl.Media = memory.NewAdmittingTokens(f.dir, f.media)
	ctx := context.Background()

	host, err := f.ctl.CreateStream(ctx, CreateStreamRequest{
		RoomName: "abcd-1234",
		Metadata: domain.RoomMetadata{CreatorIdentity: "host1"},
	})
	if err != nil {
		t.Fatalf("CreateStream: %v", err)
	}
	join, err := f.ctl.JoinStream(ctx, JoinStreamRequest{RoomName: "abcd-1234", Identity: "viewer1"})
	if err != nil {
		t.Fatalf("JoinStream: %v", err)
	}
	if _, err := f.ctl.JoinStream(ctx, JoinStreamRequest{RoomName: "abcd-1234", Identity: "viewer1"}); !domain.IsKind(err, domain.KindConflict) {
		t.Fatalf("second join err = %v, want Conflict", err)
	}

	viewer1 := f.session(t, join.AuthToken)
	if _, err := f.ctl.RaiseHand(ctx, viewer1); err != nil {
		t.Fatalf("RaiseHand: %v", err)
	}
	st, err := f.ctl.InviteToStage(ctx, f.session(t, host.AuthToken), "viewer1")
	if err != nil {
		t.Fatalf("InviteToStage: %v", err)
	}
	if st.State != domain.StageOnStage || !st.Permission.CanPublish {
		t.Fatalf("status = %+v", st)
	}

	// a dropped connection frees the identity
	f.dir.Disconnect("abcd-1234", "viewer1")
	if _, err := f.ctl.JoinStream(ctx, JoinStreamRequest{RoomName: "abcd-1234", Identity: "viewer1"}); err != nil {
		t.Fatalf("rejoin after disconnect: %v", err)
	}
}
