package geocode

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/suite"

	"trustline/internal/geo"
	dErrors "trustline/pkg/domain-errors"
	"trustline/pkg/platform/circuit"
)

type GeocodeSuite struct {
	suite.Suite
	ctx context.Context
	fix geo.Coordinate
}

func TestGeocodeSuite(t *testing.T) {
	suite.Run(t, new(GeocodeSuite))
}

func (s *GeocodeSuite) SetupTest() {
	s.ctx = context.Background()
	s.fix = geo.Coordinate{Lat: 51.5074, Lng: -0.1278}
}

func (s *GeocodeSuite) server(status int, body string) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.Equal("/reverse", r.URL.Path)
		s.Equal(DefaultUserAgent, r.Header.Get("User-Agent"))
		q := r.URL.Query()
		s.Equal("json", q.Get("format"))
		s.Equal("18", q.Get("zoom"))
		s.Equal("1", q.Get("addressdetails"))
		s.Equal("51.5074", q.Get("lat"))
		s.Equal("-0.1278", q.Get("lon"))
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	s.T().Cleanup(srv.Close)
	return srv
}

func (s *GeocodeSuite) TestNominatimReverse() {
	s.Run("composes address components", func() {
		srv := s.server(http.StatusOK, `{"display_name":"ignored","address":{"house_number":"10","road":"Downing Street","neighbourhood":"Westminster","town":"London","state":"England","postcode":"SW1A 2AA"}}`)
		got, err := NewNominatim(WithBaseURL(srv.URL)).Reverse(s.ctx, s.fix)
		s.Require().NoError(err)
		s.Equal("10, Downing Street, Westminster, London, England, SW1A 2AA", got)
	})

	s.Run("prefers suburb and city", func() {
		srv := s.server(http.StatusOK, `{"address":{"road":"Main St","suburb":"North","neighbourhood":"Old Town","city":"Springfield","village":"Nope"}}`)
		got, err := NewNominatim(WithBaseURL(srv.URL)).Reverse(s.ctx, s.fix)
		s.Require().NoError(err)
		s.Equal("Main St, North, Springfield", got)
	})

	s.Run("falls back to display name", func() {
		srv := s.server(http.StatusOK, `{"display_name":"Somewhere, Earth","address":{}}`)
		got, err := NewNominatim(WithBaseURL(srv.URL)).Reverse(s.ctx, s.fix)
		s.Require().NoError(err)
		s.Equal("Somewhere, Earth", got)
	})

	s.Run("upstream error", func() {
		srv := s.server(http.StatusOK, `{"error":"Unable to geocode"}`)
		_, err := NewNominatim(WithBaseURL(srv.URL)).Reverse(s.ctx, s.fix)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("bad status", func() {
		srv := s.server(http.StatusTooManyRequests, ``)
		_, err := NewNominatim(WithBaseURL(srv.URL)).Reverse(s.ctx, s.fix)
		s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
	})
}

type stubReverser struct {
	calls atomic.Int32
	err   error
}

func (r *stubReverser) Reverse(context.Context, geo.Coordinate) (string, error) {
	r.calls.Add(1)
	if r.err != nil {
		return "", r.err
	}
	return "10 Downing Street", nil
}

func (s *GeocodeSuite) TestFallback() {
	s.Run("passes through on success", func() {
		f := NewFallback(&stubReverser{}, nil, nil)
		got, err := f.Reverse(s.ctx, s.fix)
		s.Require().NoError(err)
		s.Equal("10 Downing Street", got)
	})

	s.Run("formats the coordinate on failure", func() {
		f := NewFallback(&stubReverser{err: errors.New("timeout")}, nil, nil)
		got, err := f.Reverse(s.ctx, s.fix)
		s.Require().NoError(err)
		s.Equal("51.507400, -0.127800", got)
	})

	s.Run("stops calling upstream once open", func() {
		stub := &stubReverser{err: errors.New("timeout")}
		f := NewFallback(stub, circuit.New("geocode", circuit.WithFailureThreshold(2)), nil)
		for range 5 {
			got, err := f.Reverse(s.ctx, s.fix)
			s.Require().NoError(err)
			s.Equal("51.507400, -0.127800", got)
		}
		s.Equal(int32(2), stub.calls.Load())
	})
}
