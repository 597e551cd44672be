package relay

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/mcubridge/pkg/wire"
)

var allKinds = []EventKind{EventConnected, EventDisconnected, EventPublished, EventData}

func TestRegistryEmpty(t *testing.T) {
	var reg Registry
	require.False(t, reg.Registered())
	for _, kind := range allKinds {
		_, ok := reg.Lookup(kind)
		require.False(t, ok, kind.String())
	}
}

func TestRegistryRegister(t *testing.T) {
	var reg Registry
	reg.Register(Callbacks{Connected: 1, Disconnected: 2, Published: 3, Data: 4})
	require.True(t, reg.Registered())
	for n, kind := range allKinds {
		h, ok := reg.Lookup(kind)
		require.True(t, ok, kind.String())
		require.Equal(t, wire.Handle(n+1), h)
	}
	_, ok := reg.Lookup(EventKind(99))
	require.False(t, ok)
}

func TestRegistryReplace(t *testing.T) {
	var reg Registry
	reg.Register(Callbacks{Connected: 1, Disconnected: 2, Published: 3, Data: 4})
	reg.Register(Callbacks{Data: 0x1001})
	for _, kind := range []EventKind{EventConnected, EventDisconnected, EventPublished} {
		_, ok := reg.Lookup(kind)
		require.False(t, ok, kind.String())
	}
	h, ok := reg.Lookup(EventData)
	require.True(t, ok)
	require.Equal(t, wire.Handle(0x1001), h)

	reg.Clear()
	require.False(t, reg.Registered())
	_, ok = reg.Lookup(EventData)
	require.False(t, ok)
}

func TestRegistryNoTornReads(t *testing.T) {
	var reg Registry
	a := Callbacks{Connected: 1, Disconnected: 1, Published: 1, Data: 1}
	b := Callbacks{Connected: 2, Disconnected: 2, Published: 2, Data: 2}
	reg.Register(a)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			if i%2 == 0 {
				reg.Register(b)
			} else {
				reg.Register(a)
			}
		}
	}()
	for i := 0; i < 10000; i++ {
		cbs := reg.current()
		require.Equal(t, cbs.Connected, cbs.Data)
		require.Equal(t, cbs.Disconnected, cbs.Published)
		require.Equal(t, cbs.Connected, cbs.Published)
	}
	close(stop)
	wg.Wait()
}

func TestEventKindString(t *testing.T) {
	require.Equal(t, "connected", EventConnected.String())
	require.Equal(t, "data", EventData.String())
	require.Equal(t, "event(9)", EventKind(9).String())
}
