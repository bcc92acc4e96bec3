package oracle

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"gotest.tools/v3/assert"
)

type stubFeed struct {
	round    RoundData
	decimals uint8
	err      error
}

func (s *stubFeed) LatestRoundData(context.Context) (RoundData, error) { return s.round, s.err }
func (s *stubFeed) Decimals(context.Context) (uint8, error)            { return s.decimals, s.err }
func (s *stubFeed) Version(context.Context) (*big.Int, error)          { return big.NewInt(4), s.err }

type stubResolver map[common.Address]PriceFeed

func (r stubResolver) ResolveFeed(_ context.Context, addr common.Address) (PriceFeed, error) {
	feed, ok := r[addr]
	if !ok {
		return nil, ErrFeedNotFound
	}
	return feed, nil
}

var feedAddr = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")

func ether(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}

func newAdapter(t *testing.T, feed *stubFeed) *Adapter {
	t.Helper()
	a, err := NewAdapter(context.Background(), feedAddr, stubResolver{feedAddr: feed})
	assert.NilError(t, err)
	return a
}

func TestToUsd(t *testing.T) {
	feed := &stubFeed{round: RoundData{RoundID: big.NewInt(1), Answer: big.NewInt(2000_00000000), UpdatedAt: 1}, decimals: 8}
	a := newAdapter(t, feed)
	ctx := context.Background()

	usd, err := a.ToUsd(ctx, ether(1))
	assert.NilError(t, err)
	assert.Equal(t, usd.Cmp(ether(2000)), 0)

	milli := new(big.Int).Div(ether(1), big.NewInt(1000))
	usd, err = a.ToUsd(ctx, milli)
	assert.NilError(t, err)
	assert.Equal(t, usd.Cmp(ether(2)), 0)

	assert.Equal(t, a.Address(), feedAddr)
}

func TestGetLatestPriceRejectsMalformed(t *testing.T) {
	cases := []struct {
		name  string
		round RoundData
		err   error
	}{
		{name: "zero", round: RoundData{RoundID: big.NewInt(1), Answer: big.NewInt(0), UpdatedAt: 1}},
		{name: "negative", round: RoundData{RoundID: big.NewInt(1), Answer: big.NewInt(-1), UpdatedAt: 1}},
		{name: "nil answer", round: RoundData{RoundID: big.NewInt(1), UpdatedAt: 1}},
		{name: "incomplete round", round: RoundData{RoundID: big.NewInt(1), Answer: big.NewInt(1)}},
		{name: "feed error", err: errors.New("connection refused")},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			a := newAdapter(t, &stubFeed{round: c.round, err: c.err, decimals: 8})
			_, err := a.GetLatestPrice(context.Background())
			assert.Assert(t, errors.Is(err, ErrOracleUnavailable), err)
			_, err = a.ToUsd(context.Background(), ether(1))
			assert.Assert(t, errors.Is(err, ErrOracleUnavailable), err)
		})
	}
}

func TestCheckDecimals(t *testing.T) {
	assert.NilError(t, newAdapter(t, &stubFeed{decimals: 8}).CheckDecimals(context.Background()))
	err := newAdapter(t, &stubFeed{decimals: 18}).CheckDecimals(context.Background())
	assert.Assert(t, errors.Is(err, ErrOracleUnavailable))
}

func TestResolvers(t *testing.T) {
	other := common.HexToAddress("0x02")
	feed := &stubFeed{}
	rs := Resolvers{nil, stubResolver{}, stubResolver{feedAddr: feed}}

	got, err := rs.ResolveFeed(context.Background(), feedAddr)
	assert.NilError(t, err)
	assert.Equal(t, got, PriceFeed(feed))

	_, err = rs.ResolveFeed(context.Background(), other)
	assert.Assert(t, errors.Is(err, ErrFeedNotFound))

	_, err = NewAdapter(context.Background(), other, rs)
	assert.Assert(t, errors.Is(err, ErrFeedNotFound))
}

func TestConvertNil(t *testing.T) {
	assert.Equal(t, Convert(nil, big.NewInt(1)).Sign(), 0)
}
