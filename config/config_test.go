package config_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/m68kprof/config"
	"github.com/sarchlab/m68kprof/profiler"
)

var _ = Describe("Config", func() {
	var tmpDir string

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "m68kprof-config-*")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(os.RemoveAll, tmpDir)
	})

	Describe("DefaultConfig", func() {
		It("should profile every instruction in exclusive mode", func() {
			c := config.DefaultConfig()

			Expect(c.Validate()).To(Succeed())
			Expect(c.ProfileOptions()).To(Equal(profiler.Options{
				Mode:       profiler.ModeExclusive,
				SampleRate: 1,
			}))
			Expect(c.Top).To(Equal(20))
		})
	})

	Describe("LoadConfig", func() {
		It("should read JSON and keep defaults for missing fields", func() {
			path := filepath.Join(tmpDir, "prof.json")
			Expect(os.WriteFile(path, []byte(`{"mode": "callstack", "sample_rate": 4}`), 0644)).To(Succeed())

			c, err := config.LoadConfig(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.ProfileMode()).To(Equal(profiler.ModeCallStack))
			Expect(c.SampleRate).To(Equal(4))
			Expect(c.Top).To(Equal(20))
		})

		It("should read YAML by extension", func() {
			path := filepath.Join(tmpDir, "prof.yaml")
			Expect(os.WriteFile(path, []byte("mode: callstack\nhistogram_path: hist.json\ntop: 5\n"), 0644)).To(Succeed())

			c, err := config.LoadConfig(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.Top).To(Equal(5))
			Expect(c.SampleRate).To(Equal(1))
			Expect(c.ProfileOptions().CollectHistogram).To(BeTrue())
		})

		It("should fail on a missing file", func() {
			_, err := config.LoadConfig(filepath.Join(tmpDir, "missing.json"))
			Expect(err).To(MatchError(ContainSubstring("failed to read config file")))
		})

		It("should fail on malformed content", func() {
			path := filepath.Join(tmpDir, "bad.json")
			Expect(os.WriteFile(path, []byte("{"), 0644)).To(Succeed())

			_, err := config.LoadConfig(path)
			Expect(err).To(MatchError(ContainSubstring("failed to parse config")))
		})
	})

	Describe("SaveConfig", func() {
		DescribeTable("should round-trip",
			func(name string) {
				c := config.DefaultConfig()
				c.Mode = "callstack"
				c.SampleRate = 16
				c.MetricsPath = "out.prom"

				path := filepath.Join(tmpDir, name)
				Expect(c.SaveConfig(path)).To(Succeed())

				loaded, err := config.LoadConfig(path)
				Expect(err).NotTo(HaveOccurred())
				Expect(loaded).To(Equal(c))
			},
			Entry("as JSON", "prof.json"),
			Entry("as YAML", "prof.yml"),
		)
	})

	Describe("Validate", func() {
		It("should reject an unknown mode", func() {
			c := config.DefaultConfig()
			c.Mode = "flat"
			Expect(c.Validate()).To(HaveOccurred())
			Expect(c.ProfileMode()).To(Equal(profiler.ModeExclusive))
		})

		It("should reject negative values", func() {
			c := config.DefaultConfig()
			c.SampleRate = -1
			Expect(c.Validate()).To(MatchError(ContainSubstring("sample_rate")))

			c = config.DefaultConfig()
			c.Top = -1
			Expect(c.Validate()).To(MatchError(ContainSubstring("top")))
		})
	})

	Describe("Clone", func() {
		It("should copy independently", func() {
			c := config.DefaultConfig()
			clone := c.Clone()
			clone.SampleRate = 8

			Expect(c.SampleRate).To(Equal(1))
		})
	})
})
