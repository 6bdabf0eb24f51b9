package api_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/wesm/github-issue-link/internal/api"
)

var _ = Describe("external keys", func() {
	It("round-trips a repository and number", func() {
		key := api.MakeExternalKey("getsentry/sentry", 321)
		Expect(key).To(Equal("getsentry/sentry#321"))

		repo, number, err := api.ParseExternalKey(key)
		Expect(err).NotTo(HaveOccurred())
		Expect(repo).To(Equal("getsentry/sentry"))
		Expect(number).To(Equal(321))
	})

	It("splits on the last hash", func() {
		repo, number, err := api.ParseExternalKey("odd#repo#12")
		Expect(err).NotTo(HaveOccurred())
		Expect(repo).To(Equal("odd#repo"))
		Expect(number).To(Equal(12))
	})

	DescribeTable("rejects invalid keys",
		func(key string) {
			_, _, err := api.ParseExternalKey(key)
			Expect(err).To(HaveOccurred())
		},
		Entry("no hash", "getsentry/sentry"),
		Entry("no number", "getsentry/sentry#"),
		Entry("no repository", "#321"),
		Entry("non-numeric number", "getsentry/sentry#abc"),
		Entry("zero", "getsentry/sentry#0"),
	)

	It("builds issue urls", func() {
		url, err := api.IssueURL("", "getsentry/sentry#321")
		Expect(err).NotTo(HaveOccurred())
		Expect(url).To(Equal("https://github.com/getsentry/sentry/issues/321"))

		url, err = api.IssueURL("https://ghe.example.com/", "team/app#4")
		Expect(err).NotTo(HaveOccurred())
		Expect(url).To(Equal("https://ghe.example.com/team/app/issues/4"))
	})
})
