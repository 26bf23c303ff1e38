package emu_test

import (
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/m68kprof/emu"
)

var _ = Describe("Trace", func() {
	Describe("ParseTrace", func() {
		It("should parse pc and cycle pairs", func() {
			records, err := emu.ParseTrace(strings.NewReader(
				"# pc cycles\n" +
					"\n" +
					"00000200 20\n" +
					"0x210 4\n"))

			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(Equal([]emu.TraceRecord{
				{PC: 0x200, Cost: 20},
				{PC: 0x210, Cost: 4},
			}))
		})

		It("should report the line of a bad record", func() {
			_, err := emu.ParseTrace(strings.NewReader(
				"00000200 20\n" +
					"00000210\n"))

			Expect(err).To(MatchError(ContainSubstring("line 2")))
		})

		It("should reject a bad pc", func() {
			_, err := emu.ParseTrace(strings.NewReader("xyz 4\n"))
			Expect(err).To(MatchError(ContainSubstring("invalid pc")))
		})

		It("should reject a bad cycle count", func() {
			_, err := emu.ParseTrace(strings.NewReader("200 -4\n"))
			Expect(err).To(MatchError(ContainSubstring("invalid cycle count")))
		})
	})

	Describe("LoadTrace", func() {
		It("should read a trace from disk", func() {
			path := filepath.Join(GinkgoT().TempDir(), "run.trace")
			Expect(os.WriteFile(path, []byte("200 8\n204 4\n"), 0644)).To(Succeed())

			records, err := emu.LoadTrace(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(2))
		})

		It("should fail on a missing file", func() {
			_, err := emu.LoadTrace("/nonexistent/run.trace")
			Expect(err).To(HaveOccurred())
		})
	})
})
