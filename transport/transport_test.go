package transport

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/orbitsync/rangesync/memstore"
	"github.com/orbitsync/rangesync/rangesync"
)

func TestServeDialConverges(t *testing.T) {
	serverStore := memstore.New()
	clientStore := memstore.New()
	for _, k := range []string{"a", "c", "e"} {
		require.NoError(t, serverStore.Put(memstore.NewStringEntry(k, k)))
	}
	for _, k := range []string{"b", "d", "f"} {
		require.NoError(t, clientStore.Put(memstore.NewStringEntry(k, k)))
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	srv := NewServer(serverStore, memstore.StringCodec{}, WithMaxRounds(32))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Serve(ctx, ln)

	client := NewClient(memstore.StringCodec{}, WithClientMaxRounds(32))
	peer := rangesync.NewPeer(clientStore)

	dialCtx, dialCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer dialCancel()
	_, err = client.Dial(dialCtx, ln.Addr().String(), peer, rangesync.AcceptAll)
	require.NoError(t, err)

	// give the accepted goroutine a moment to finish writing into serverStore
	require.Eventually(t, func() bool {
		n, _ := serverStore.Len()
		return n == 6
	}, 2*time.Second, 10*time.Millisecond)

	clientN, err := clientStore.Len()
	require.NoError(t, err)
	require.Equal(t, 6, clientN)
}
