package extraction

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Prompt", func() {
	Describe("the embedded default", func() {
		prompt := NewPrompt()

		It("asks for a flat JSON object", func() {
			Expect(prompt.Render(nil)).To(ContainSubstring("flat JSON object"))
		})

		It("asks for ISO dates", func() {
			Expect(prompt.Render(nil)).To(ContainSubstring("YYYY-MM-DD"))
		})

		It("names the known currency noise tokens", func() {
			text := prompt.Render(nil)
			Expect(text).To(ContainSubstring("RC"))
			Expect(text).To(ContainSubstring("RewardCash"))
			Expect(text).To(ContainSubstring("HKD"))
		})

		It("forbids markdown wrapping", func() {
			Expect(prompt.Render(nil)).To(ContainSubstring("markdown"))
		})
	})

	Describe("Render with a column set", func() {
		prompt := NewPrompt()
		columns := []string{"date", "merchant", "amount"}

		It("lists the exact keys", func() {
			Expect(prompt.Render(columns)).To(ContainSubstring("date, merchant, amount"))
		})

		It("instructs null for missing categories and forbids new keys", func() {
			text := prompt.Render(columns)
			Expect(text).To(ContainSubstring("null"))
			Expect(text).To(ContainSubstring("Do not add any other keys"))
		})
	})

	Describe("LoadPrompt", func() {
		It("reads a replacement prompt from a file", func() {
			path := filepath.Join(GinkgoT().TempDir(), "prompt.txt")
			Expect(os.WriteFile(path, []byte("custom instructions"), 0644)).To(Succeed())

			prompt, err := LoadPrompt(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(prompt.Render(nil)).To(Equal("custom instructions"))
		})

		It("rejects an empty file", func() {
			path := filepath.Join(GinkgoT().TempDir(), "prompt.txt")
			Expect(os.WriteFile(path, []byte("  \n"), 0644)).To(Succeed())

			_, err := LoadPrompt(path)
			Expect(err).To(HaveOccurred())
		})

		It("fails on a missing file", func() {
			_, err := LoadPrompt("/nonexistent/prompt.txt")
			Expect(err).To(HaveOccurred())
		})
	})
})

var _ = Describe("validateColumns", func() {
	columns := []string{"date", "merchant", "amount"}

	It("accepts a record matching the column set", func() {
		rec := Record{"date": "2024-01-15", "merchant": "CVS", "amount": 25.99}
		Expect(validateColumns(rec, columns)).To(Succeed())
	})

	It("accepts null values", func() {
		rec := Record{"date": nil, "merchant": "CVS", "amount": nil}
		Expect(validateColumns(rec, columns)).To(Succeed())
	})

	It("rejects keys outside the column set", func() {
		rec := Record{"date": "2024-01-15", "surprise": "x"}
		Expect(validateColumns(rec, columns)).NotTo(Succeed())
	})

	It("rejects nested values", func() {
		rec := Record{"date": map[string]any{"year": 2024.0}}
		Expect(validateColumns(rec, columns)).NotTo(Succeed())
	})

	It("reuses the compiled schema across calls", func() {
		first, err := compiledSchema(columns)
		Expect(err).NotTo(HaveOccurred())
		second, err := compiledSchema(columns)
		Expect(err).NotTo(HaveOccurred())
		Expect(second).To(BeIdenticalTo(first))
	})

	It("recompiles when the column set changes", func() {
		first, err := compiledSchema(columns)
		Expect(err).NotTo(HaveOccurred())
		other, err := compiledSchema([]string{"vendor", "total"})
		Expect(err).NotTo(HaveOccurred())
		Expect(other).NotTo(BeIdenticalTo(first))
	})
})
