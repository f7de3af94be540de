package core

import (
	"context"
	"strconv"
	"testing"
	"time"
)

func benchmarkRoomBroadcast(b *testing.B, recipients int) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(Config{PatchRate: time.Millisecond, ClientBuffer: 4096}, Services{}, nil)
	go hub.Run(ctx)

	sender := hub.NewClient("sender")
	if _, err := hub.Join(ctx, sender, JoinRequest{}); err != nil {
		b.Fatal(err)
	}
	go func() {
		for range sender.Events {
		}
	}()

	var target *Client
	for i := range recipients {
		c := hub.NewClient("c" + strconv.Itoa(i))
		if _, err := hub.Join(ctx, c, JoinRequest{}); err != nil {
			b.Fatal(err)
		}
		if i == 0 {
			target = c
			continue
		}
		// drain everyone but the target to avoid backpressure
		go func(cl *Client) {
			for range cl.Events {
			}
		}(c)
	}
	for len(target.Events) > 0 {
		<-target.Events
	}

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if err := hub.Dispatch(sender, &Command{Kind: CommandUpdatePlayer, X: float64(i + 1), Y: 1}); err != nil {
			b.Fatal(err)
		}
		for {
			ev := <-target.Events
			if ev.Kind == EventRoomPatch {
				break
			}
		}
	}
}

func BenchmarkRoomBroadcast_10(b *testing.B)  { benchmarkRoomBroadcast(b, 10) }
func BenchmarkRoomBroadcast_100(b *testing.B) { benchmarkRoomBroadcast(b, 100) }
func BenchmarkRoomBroadcast_500(b *testing.B) { benchmarkRoomBroadcast(b, 500) }
