//go:build integration

package ambiance_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/ddevcap/storia/ambiance"
)

var _ = Describe("RedisAudioCache", Ordered, func() {
	var (
		ctx    context.Context
		client *redis.Client
		rc     *ambiance.RedisAudioCache
	)

	BeforeAll(func() {
		ctx = context.Background()

		container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: testcontainers.ContainerRequest{
				Image:        "redis:7-alpine",
				ExposedPorts: []string{"6379/tcp"},
				WaitingFor:   wait.ForLog("Ready to accept connections"),
			},
			Started: true,
		})
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() { _ = container.Terminate(ctx) })

		host, err := container.Host(ctx)
		Expect(err).NotTo(HaveOccurred())
		port, err := container.MappedPort(ctx, "6379")
		Expect(err).NotTo(HaveOccurred())

		rc, err = ambiance.NewRedisAudioCache(ctx, "redis://"+host+":"+port.Port()+"/0")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(rc.Close)

		client = redis.NewClient(&redis.Options{Addr: host + ":" + port.Port()})
		DeferCleanup(client.Close)
	})

	It("round-trips audio and metadata", func() {
		in := ambiance.CachedAudio{
			Audio:          mp3Bytes,
			ContentType:    "audio/mpeg",
			Mood:           "tense",
			AmbiancePrompt: "Storm on the moor",
		}
		Expect(rc.Set(ctx, "music_page_7_2", in, time.Minute)).To(Succeed())

		out, ok, err := rc.Get(ctx, "music_page_7_2")
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(out).To(Equal(in))

		ttl, err := client.TTL(ctx, "music_page_7_2").Result()
		Expect(err).NotTo(HaveOccurred())
		Expect(ttl).To(BeNumerically(">", 50*time.Second))
	})

	It("reports a miss for unknown keys", func() {
		_, ok, err := rc.Get(ctx, "music_page_missing")
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeFalse())
	})

	It("skips non-positive TTLs", func() {
		Expect(rc.Set(ctx, "music_page_zero", ambiance.CachedAudio{Audio: []byte("x")}, 0)).To(Succeed())
		_, ok, _ := rc.Get(ctx, "music_page_zero")
		Expect(ok).To(BeFalse())
	})

	It("expires entries", func() {
		Expect(rc.Set(ctx, "music_page_short", ambiance.CachedAudio{Audio: []byte("x")}, time.Second)).To(Succeed())
		Eventually(func() bool {
			_, ok, _ := rc.Get(ctx, "music_page_short")
			return ok
		}, 5*time.Second, 200*time.Millisecond).Should(BeFalse())
	})

	It("reports corrupt entries", func() {
		Expect(client.Set(ctx, "music_page_bad", "not json", time.Minute).Err()).To(Succeed())
		_, _, err := rc.Get(ctx, "music_page_bad")
		Expect(err).To(MatchError(ContainSubstring("decoding cached audio")))
	})

	It("is pinged through the service", func() {
		checked, err := ambiance.NewService(ambiance.Options{Cache: rc}).PingCache(ctx)
		Expect(checked).To(BeTrue())
		Expect(err).NotTo(HaveOccurred())
	})

	It("serves page music across service instances", func() {
		fake := newFakeElevenLabs()
		opts := ambiance.Options{
			Analyzer:   ambiance.KeywordAnalyzer{},
			ElevenLabs: fake.client("sk_test"),
			Cache:      rc,
			MusicTTL:   time.Minute,
		}
		p := 9
		_ = ambiance.NewService(opts).GenerateFromText(ctx, ambiance.PageRequest{Text: "a quiet calm sea", Page: &p})
		again := ambiance.NewService(opts).GenerateFromText(ctx, ambiance.PageRequest{Text: "a quiet calm sea", Page: &p})

		Expect(again.Cached).To(BeTrue())
		Expect(fake.calls.Load()).To(BeEquivalentTo(1))
	})
})
