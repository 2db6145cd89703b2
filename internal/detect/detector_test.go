package detect_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/BowlesCR/cable-modem-monitor/internal/detect"
	"github.com/BowlesCR/cable-modem-monitor/internal/fetch/mocks"
	"github.com/BowlesCR/cable-modem-monitor/internal/modem"
	"github.com/BowlesCR/cable-modem-monitor/internal/modem/modemtest"
)

func TestSweepReturnsFirstMatch(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	fetcher := mocks.NewMockFetcher(ctrl)
	fetcher.EXPECT().Fetch(gomock.Any(), gomock.Any()).Return(
		modem.PageContent{Path: "/", Body: []byte("<title>Motorola MB7621</title>")}, nil,
	).AnyTimes()

	first := modemtest.NewFakeParser("Motorola", "Motorola MB7621", modem.PriorityModel)
	first.DetectMarker = "MB7621"
	second := modemtest.NewFakeParser("Motorola", "Motorola MB Series (Generic)", modem.PriorityGeneric)
	second.DetectMarker = "Motorola"

	detection, err := detect.New(fetcher).Sweep(context.Background(), []modem.Parser{first, second})
	require.NoError(t, err)
	assert.Equal(t, "Motorola MB7621", detection.Parser.Descriptor().Name)

	// Short-circuit: the generic parser must never have been consulted.
	assert.Zero(t, second.DetectCalls)
	assert.Equal(t, 1, first.DetectCalls)
}

func TestSweepSkipsUnfetchableCandidates(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	fetcher := mocks.NewMockFetcher(ctrl)

	hnapSpec := modem.FetchSpec{Path: "/HNAP1/", Auth: modem.AuthHNAP, HNAPActions: []string{"GetMotoStatusDownstreamChannelInfo"}}
	rootSpec := modem.FetchSpec{Path: "/", Auth: modem.AuthNone}

	fetcher.EXPECT().Fetch(gomock.Any(), hnapSpec).Return(
		modem.PageContent{}, &modem.FetchError{Path: "/HNAP1/", Auth: modem.AuthHNAP, Err: errors.New("connection refused")},
	)
	fetcher.EXPECT().Fetch(gomock.Any(), rootSpec).Return(
		modem.PageContent{Path: "/", Body: []byte("ARRIS SB6190 status")}, nil,
	)

	hnapParser := modemtest.NewFakeParser("Motorola", "Motorola MB8600 (HNAP)", modem.PriorityAPI)
	hnapParser.Desc.Fetches = []modem.FetchSpec{hnapSpec}
	hnapParser.DetectMarker = "Moto"

	htmlParser := modemtest.NewFakeParser("ARRIS", "ARRIS SB6190", modem.PriorityModel)
	htmlParser.Desc.Fetches = []modem.FetchSpec{rootSpec}
	htmlParser.DetectMarker = "SB6190"

	detection, err := detect.New(fetcher).Sweep(context.Background(), []modem.Parser{hnapParser, htmlParser})
	require.NoError(t, err)
	assert.Equal(t, "ARRIS SB6190", detection.Parser.Descriptor().Name)

	// The unfetchable candidate was skipped, not asked to detect.
	assert.Zero(t, hnapParser.DetectCalls)
}

func TestSweepNoMatch(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	fetcher := mocks.NewMockFetcher(ctrl)
	fetcher.EXPECT().Fetch(gomock.Any(), gomock.Any()).Return(
		modem.PageContent{Path: "/", Body: []byte("<html>unrecognized device</html>")}, nil,
	).AnyTimes()

	a := modemtest.NewFakeParser("Motorola", "Motorola MB7621", modem.PriorityModel)
	a.DetectMarker = "MB7621"
	b := modemtest.NewFakeParser("Netgear", "Netgear CM600", modem.PriorityModel)
	b.DetectMarker = "CM600"

	detection, err := detect.New(fetcher).Sweep(context.Background(), []modem.Parser{a, b})
	assert.Nil(t, detection)
	require.ErrorIs(t, err, modem.ErrNoMatch)
}

func TestSweepDetectionIsIdempotent(t *testing.T) {
	t.Parallel()

	content := modem.PageContent{Path: "/", Body: []byte("Netgear CM600")}
	p := modemtest.NewFakeParser("Netgear", "Netgear CM600", modem.PriorityModel)
	p.DetectMarker = "CM600"

	first := p.Detect(content)
	second := p.Detect(content)
	assert.Equal(t, first, second)
	assert.True(t, first.Matched)
}

func TestSweepMemoizesSharedPages(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	fetcher := mocks.NewMockFetcher(ctrl)

	rootSpec := modem.FetchSpec{Path: "/", Auth: modem.AuthNone}
	// Two candidates declare the same page; it must be fetched exactly once.
	fetcher.EXPECT().Fetch(gomock.Any(), rootSpec).Return(
		modem.PageContent{Path: "/", Body: []byte("nothing to see")}, nil,
	).Times(1)

	a := modemtest.NewFakeParser("ARRIS", "ARRIS SB6190", modem.PriorityModel)
	a.Desc.Fetches = []modem.FetchSpec{rootSpec}
	b := modemtest.NewFakeParser("Netgear", "Netgear CM600", modem.PriorityModel)
	b.Desc.Fetches = []modem.FetchSpec{rootSpec}

	_, err := detect.New(fetcher).Sweep(context.Background(), []modem.Parser{a, b})
	require.ErrorIs(t, err, modem.ErrNoMatch)
}

func TestSweepHonorsContextCancellation(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	fetcher := mocks.NewMockFetcher(ctrl)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := modemtest.NewFakeParser("ARRIS", "ARRIS SB6190", modem.PriorityModel)

	_, err := detect.New(fetcher).Sweep(ctx, []modem.Parser{p})
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, p.DetectCalls)
}
