package transport

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/srediag/xfer/api"
	"github.com/srediag/xfer/pkg/lifecycle"
)

type StdinTransportTestSuite struct {
	suite.Suite
	transport *StdinTransport
}

func (s *StdinTransportTestSuite) SetupTest() {
	config := DefaultConfig()
	config.MaxDataSize = 8
	t, err := NewStdinTransport(config)
	s.Require().NoError(err)
	s.transport = t
}

func (s *StdinTransportTestSuite) TestMode() {
	s.Equal(api.ModeStdin, s.transport.Mode())
	s.EqualValues(8, s.transport.MaxDataSize())
}

func (s *StdinTransportTestSuite) TestSendWritesAndCloses() {
	p := newFakeProcess()
	md := newMetadata(1)
	ok, err := s.transport.Send(context.Background(), p, []byte{1, 2, 3, 4, 5}, md)
	s.Require().NoError(err)
	s.Require().True(ok)
	s.Equal([]byte{1, 2, 3, 4, 5}, p.stdin.bytes())
	s.True(p.stdin.isClosed())
	s.Equal(api.ModeStdin, md.TransportMode)
	s.EqualValues(5, md.DataSize)
	s.Empty(md.FilePath)
	s.Empty(md.MmapName)
}

func (s *StdinTransportTestSuite) TestSizeLimit() {
	p := newFakeProcess()
	ok, err := s.transport.Send(context.Background(), p, make([]byte, 8), newMetadata(1))
	s.Require().NoError(err)
	s.True(ok, "payload exactly at the limit is accepted")

	p = newFakeProcess()
	md := newMetadata(2)
	ok, err = s.transport.Send(context.Background(), p, make([]byte, 9), md)
	s.Require().NoError(err)
	s.False(ok)
	s.Empty(p.stdin.bytes(), "nothing may be written for an oversized payload")
	s.False(p.stdin.isClosed())
	s.Empty(md.TransportMode)
}

func (s *StdinTransportTestSuite) TestExitedTarget() {
	p := exitedProcess()
	ok, err := s.transport.Send(context.Background(), p, []byte{1}, newMetadata(1))
	s.NoError(err)
	s.False(ok)
	s.Empty(p.stdin.bytes())

	ok, err = s.transport.Send(context.Background(), nil, []byte{1}, newMetadata(1))
	s.NoError(err)
	s.False(ok)
}

func (s *StdinTransportTestSuite) TestNoStdin() {
	p := newFakeProcess()
	p.stdin = nil
	ok, err := s.transport.Send(context.Background(), p, []byte{1}, newMetadata(1))
	s.NoError(err)
	s.False(ok)
}

func (s *StdinTransportTestSuite) TestWriteFailure() {
	p := newFakeProcess()
	p.stdin.writeErr = errors.New("broken pipe")
	md := newMetadata(1)
	ok, err := s.transport.Send(context.Background(), p, []byte{1}, md)
	s.NoError(err)
	s.False(ok)
	s.Empty(md.TransportMode)
	s.Zero(md.DataSize)
}

func (s *StdinTransportTestSuite) TestCancelledContext() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := newFakeProcess()
	ok, err := s.transport.Send(ctx, p, []byte{1}, newMetadata(1))
	s.NoError(err)
	s.False(ok)
	s.Empty(p.stdin.bytes())
}

func (s *StdinTransportTestSuite) TestNilMetadata() {
	_, err := s.transport.Send(context.Background(), newFakeProcess(), []byte{1}, nil)
	s.Error(err)
}

func (s *StdinTransportTestSuite) TestCleanupIsNoop() {
	md := newMetadata(1)
	s.transport.Cleanup(md)
	s.transport.Cleanup(md)
	s.transport.Cleanup(nil)
}

func (s *StdinTransportTestSuite) TestChildProcess() {
	if _, err := exec.LookPath("cat"); err != nil {
		s.T().Skip("cat not available")
	}
	var stdout bytes.Buffer
	cmd := exec.Command("cat")
	cmd.Stdout = &stdout
	p, err := lifecycle.Start(cmd)
	s.Require().NoError(err)

	payload := []byte("rendered")
	md := newMetadata(1)
	ok, err := s.transport.Send(context.Background(), p, payload, md)
	s.Require().NoError(err)
	s.Require().True(ok)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.Require().NoError(p.Wait(ctx))

	got, err := ReadStdin(&stdout, s.transport.MaxDataSize())
	s.Require().NoError(err)
	s.Equal(payload, got)

	ok, err = s.transport.Send(context.Background(), p, payload, newMetadata(2))
	s.NoError(err)
	s.False(ok, "exited child must be refused")
}

func TestStdinTransportTestSuite(t *testing.T) {
	suite.Run(t, new(StdinTransportTestSuite))
}
