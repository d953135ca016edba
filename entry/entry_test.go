package entry_test

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"kvconsole/entry"
)

var _ = Describe("Entry", func() {

	It("requires a key", func() {
		Expect(entry.Entry{Value: "v"}.Validate()).To(MatchError(entry.ErrMissingKey))
	})

	It("requires a value", func() {
		Expect(entry.Entry{Key: "k"}.Validate()).To(MatchError(entry.ErrMissingValue))
	})

	It("accepts a complete entry", func() {
		Expect(entry.Entry{Key: "k", Value: "v"}.Validate()).To(Succeed())
	})
})

var _ = Describe("Page", func() {

	Context("PageCount", func() {
		It("rounds up partial pages", func() {
			Expect(entry.PageCount(25, 10)).To(Equal(3))
			Expect(entry.PageCount(30, 10)).To(Equal(3))
			Expect(entry.PageCount(31, 10)).To(Equal(4))
			Expect(entry.PageCount(1, 10)).To(Equal(1))
		})

		It("is zero for an empty result", func() {
			Expect(entry.PageCount(0, 10)).To(Equal(0))
			Expect(entry.PageCount(-3, 10)).To(Equal(0))
			Expect(entry.PageCount(5, 0)).To(Equal(0))
		})
	})

	Context("ValidPage", func() {
		It("rejects non-positive arguments", func() {
			Expect(entry.ValidPage(0, 10)).To(MatchError(entry.ErrInvalidPage))
			Expect(entry.ValidPage(1, 0)).To(MatchError(entry.ErrInvalidPage))
			Expect(entry.ValidPage(1, 1)).To(Succeed())
		})
	})

	Context("Normalize", func() {
		It("drops items beyond the page size", func() {
			p := entry.Page{Items: make([]entry.Entry, 12), Total: 12}
			Expect(p.Normalize(10)).To(BeTrue())
			Expect(p.Items).To(HaveLen(10))
			Expect(p.Total).To(Equal(12))
		})

		It("raises the total to the item count", func() {
			p := entry.Page{Items: make([]entry.Entry, 3), Total: 1}
			Expect(p.Normalize(10)).To(BeFalse())
			Expect(p.Total).To(Equal(3))
		})

		It("replaces nil items with an empty list", func() {
			p := entry.Page{}
			p.Normalize(10)
			Expect(p.Items).NotTo(BeNil())
			Expect(p.Items).To(BeEmpty())
		})
	})
})
