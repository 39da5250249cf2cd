package core

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestPublisherTargets(t *testing.T) {
	tests := []struct {
		name      string
		copyUser  bool
		userID    string
		forceUser bool
		want      []string
	}{
		{"channel only", false, testUser, false, []string{testChannel}},
		{"watcher copy enabled", true, testUser, false, []string{testChannel, testUser}},
		{"forced user copy", false, testUser, true, []string{testChannel, testUser}},
		{"no user id", true, "", true, []string{testChannel}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &fakeDeliverer{}
			p := NewPublisher(d, Targets{ChannelID: testChannel, SendWatcherToUser: tt.copyUser, DisablePreview: true}, nil, zaptest.NewLogger(t))

			require.NoError(t, p.Publish(context.Background(), "hello", tt.userID, tt.forceUser))

			var got []string
			for _, m := range d.messages() {
				got = append(got, m.destination)
				assert.True(t, m.disablePreview)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPublisherChannelFailureIsFatal(t *testing.T) {
	d := &fakeDeliverer{fail: map[string]error{testChannel: errors.New("chat not found")}}
	p := NewPublisher(d, Targets{ChannelID: testChannel}, nil, zaptest.NewLogger(t))

	err := p.Publish(context.Background(), "hello", testUser, true)
	assert.ErrorContains(t, err, "sending to channel")
	assert.Empty(t, d.messages())
}

func TestPublisherMirrorFailureIsIgnored(t *testing.T) {
	d := &fakeDeliverer{}
	broken := &fakeDeliverer{fail: map[string]error{"ops@example.com": errors.New("550 rejected")}}
	working := &fakeDeliverer{}
	p := NewPublisher(d, Targets{ChannelID: testChannel}, []Mirror{
		{Deliverer: broken, Destination: "ops@example.com"},
		{Deliverer: working, Destination: "archive@example.com"},
	}, zaptest.NewLogger(t))

	require.NoError(t, p.Publish(context.Background(), "hello", "", false))
	assert.Equal(t, []string{"hello"}, working.to("archive@example.com"))
}

func TestPublisherNotify(t *testing.T) {
	d := &fakeDeliverer{}
	p := NewPublisher(d, Targets{ChannelID: testChannel, UserID: testUser}, nil, zaptest.NewLogger(t))
	require.NoError(t, p.Notify(context.Background(), "restarting"))
	assert.Equal(t, []string{"restarting"}, d.to(testUser))

	silent := NewPublisher(d, Targets{ChannelID: testChannel}, nil, zaptest.NewLogger(t))
	require.NoError(t, silent.Notify(context.Background(), "ignored"))
	assert.Len(t, d.messages(), 1)
}

func TestDispatcherRunsJobsInOrder(t *testing.T) {
	d := NewDispatcher(zaptest.NewLogger(t))

	var mu sync.Mutex
	var order []string
	record := func(name string, err error) Job {
		return Job{Name: name, Run: func(ctx context.Context) error {
			mu.Lock()
			defer mu.Unlock()
			order = append(order, name)
			return err
		}}
	}

	d.Dispatch(record("first", nil))
	d.Dispatch(record("second", errors.New("telegram timeout")))
	d.Dispatch(record("third", nil))
	assert.Equal(t, 3, d.Pending())

	runDispatcher(t, d, func() bool { return d.Pending() == 0 && len(snapshot(&mu, &order)) == 3 })

	assert.Equal(t, []string{"first", "second", "third"}, snapshot(&mu, &order))
}

func TestDispatcherStopsOnCancel(t *testing.T) {
	d := NewDispatcher(zaptest.NewLogger(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.NoError(t, d.Run(ctx))
}

func snapshot(mu *sync.Mutex, s *[]string) []string {
	mu.Lock()
	defer mu.Unlock()
	return append([]string(nil), (*s)...)
}

func TestSessionOpenerFallsBack(t *testing.T) {
	session := &fakeSession{badFolders: map[string]bool{"Kwork": true}}
	dialer := &fakeDialer{session: session}
	opener := NewSessionOpener(dialer, []string{"Kwork", "", "Kwork", "[Gmail]/All Mail", "INBOX"}, zaptest.NewLogger(t))

	assert.Equal(t, []string{"Kwork", "[Gmail]/All Mail", "INBOX"}, opener.Folders())

	got, folder, err := opener.Open(context.Background())
	require.NoError(t, err)
	assert.Same(t, session, got)
	assert.Equal(t, "[Gmail]/All Mail", folder)
	assert.Equal(t, []string{"Kwork", "[Gmail]/All Mail"}, session.selected)
}

func TestSessionOpenerNoSelectableFolder(t *testing.T) {
	session := &fakeSession{badFolders: map[string]bool{"Kwork": true, "INBOX": true}}
	opener := NewSessionOpener(&fakeDialer{session: session}, []string{"Kwork", "INBOX"}, zaptest.NewLogger(t))

	_, _, err := opener.Open(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "Kwork")
	assert.ErrorContains(t, err, "INBOX")
	assert.True(t, session.isClosed())
}

func TestSessionOpenerDialFailure(t *testing.T) {
	opener := NewSessionOpener(&fakeDialer{err: errors.New("authentication failed")}, []string{"INBOX"}, zaptest.NewLogger(t))

	_, _, err := opener.Open(context.Background())
	assert.ErrorContains(t, err, "authentication failed")
}

func TestPipelineRender(t *testing.T) {
	p := NewPipeline(lineDecoder{}, subjectParser{}, subjectFormatter{}, zaptest.NewLogger(t))

	text, result := p.Render(CandidateMessage{UID: 1, Timestamp: baseTime, Raw: []byte("news@kwork.ru\nНовые проекты")})
	assert.Equal(t, "digest: Новые проекты", text)
	require.Len(t, result.Listings, 1)
	assert.Equal(t, "Новые проекты", result.Listings[0].Title)
}
