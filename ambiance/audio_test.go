package ambiance_test

import (
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/ddevcap/storia/ambiance"
)

var _ = DescribeTable("Bucket",
	func(mood, bucket string) {
		Expect(ambiance.Bucket(mood)).To(Equal(bucket))
	},
	Entry("happy", "happy", "happy"),
	Entry("Joyful", "Joyful", "happy"),
	Entry("cheerful", "cheerful", "happy"),
	Entry("melancholic", "melancholic", "sad"),
	Entry("somber", "somber", "sad"),
	Entry("suspenseful", "suspenseful", "tense"),
	Entry("anxious", "anxious", "tense"),
	Entry(" calm ", " calm ", "peaceful"),
	Entry("serene", "serene", "peaceful"),
	Entry("thrilling", "thrilling", "exciting"),
	Entry("energetic", "energetic", "exciting"),
	Entry("loving", "loving", "romantic"),
	Entry("enigmatic", "enigmatic", "mysterious"),
	Entry("wistful", "wistful", "neutral"),
	Entry("empty mood", "", "neutral"),
)

var _ = Describe("TruncatePrompt", func() {
	It("keeps short prompts", func() {
		Expect(ambiance.TruncatePrompt("Soft rain")).To(Equal("Soft rain"))
	})

	It("cuts long prompts at 100 characters", func() {
		long := strings.Repeat("a", 150)
		Expect(ambiance.TruncatePrompt(long)).To(Equal(strings.Repeat("a", 100) + "..."))
	})
})

var _ = Describe("FallbackAudio", func() {
	var dir string

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
	})

	write := func(name string, data []byte) {
		Expect(os.WriteFile(filepath.Join(dir, name), data, 0o644)).To(Succeed())
	}

	It("serves the bucket file and keeps the detected mood", func() {
		write("fallback-sad.mp3", mp3Bytes)
		write("fallback-neutral.mp3", []byte("ID3neutral"))

		a := ambiance.NewFallbackAudio(dir).Load("melancholic")
		Expect(a.Data).To(Equal(mp3Bytes))
		Expect(a.Mood).To(Equal("melancholic"))
		Expect(a.Fallback).To(BeTrue())
		Expect(a.ContentType).To(Equal("audio/mpeg"))
	})

	It("falls back to the neutral file", func() {
		write("fallback-neutral.mp3", mp3Bytes)

		a := ambiance.NewFallbackAudio(dir).Load("tense")
		Expect(a.Data).To(Equal(mp3Bytes))
		Expect(a.Mood).To(Equal("neutral"))
	})

	It("ends with a silent buffer", func() {
		a := ambiance.NewFallbackAudio(dir).Load("happy")
		Expect(a.Data).To(HaveLen(ambiance.SilentAudioLen))
		Expect(a.Data).To(HaveEach(byte(0)))
		Expect(a.Mood).To(Equal("neutral"))
		Expect(a.ContentType).To(Equal("audio/mpeg"))
		Expect(a.Fallback).To(BeTrue())
	})

	It("skips empty files", func() {
		write("fallback-happy.mp3", nil)

		a := ambiance.NewFallbackAudio(dir).Load("happy")
		Expect(a.Data).To(HaveLen(ambiance.SilentAudioLen))
	})

	It("works without a directory", func() {
		a := ambiance.NewFallbackAudio("").Load("happy")
		Expect(a.Data).To(HaveLen(ambiance.SilentAudioLen))
	})
})

var _ = Describe("AudioContentType", func() {
	It("recognises mp3", func() {
		Expect(ambiance.AudioContentType(mp3Bytes)).To(Equal("audio/mpeg"))
	})

	It("recognises wav", func() {
		wav := append([]byte("RIFF\x24\x00\x00\x00WAVEfmt "), make([]byte, 64)...)
		Expect(ambiance.AudioContentType(wav)).To(HavePrefix("audio/"))
	})

	It("defaults to mpeg for unknown data", func() {
		Expect(ambiance.AudioContentType([]byte{0, 0, 0, 0})).To(Equal("audio/mpeg"))
	})
})
