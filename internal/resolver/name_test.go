package resolver_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"eduops.app/relay/common/logger"
	"eduops.app/relay/internal/model"
	"eduops.app/relay/internal/resolver"
)

var _ = Describe("ResolveName", func() {
	It("returns a duplicated full name unmodified", func() {
		sub := model.Subscriber{
			FullName:  logger.Ptr("Aline Aline Conceição de Barros de Oliveira"),
			FirstName: logger.Ptr("Aline"),
			Phone:     "+555194322735",
		}

		Expect(resolver.ResolveName(sub)).To(Equal("Aline Aline Conceição de Barros de Oliveira"))
	})

	It("falls back to a phone label when every name is empty", func() {
		sub := model.Subscriber{
			FullName:  logger.Ptr(""),
			FirstName: logger.Ptr(""),
			LastName:  logger.Ptr(""),
			Phone:     "+5516997510930",
		}

		name := resolver.ResolveName(sub)

		Expect(name).To(Equal("Cliente 0930"))
		Expect(resolver.ResolveName(sub)).To(Equal(name))
	})

	It("only trims whitespace around a full name", func() {
		sub := model.Subscriber{FullName: logger.Ptr("  Maria  da Silva \n"), Phone: "1"}
		Expect(resolver.ResolveName(sub)).To(Equal("Maria  da Silva"))
	})

	DescribeTable("fallback chain",
		func(sub model.Subscriber, want string) {
			Expect(resolver.ResolveName(sub)).To(Equal(want))
		},
		Entry("first and last name",
			model.Subscriber{FirstName: logger.Ptr("João"), LastName: logger.Ptr("Souza"), Phone: "+5511900001111"},
			"João Souza"),
		Entry("first name alone",
			model.Subscriber{FirstName: logger.Ptr("João"), LastName: logger.Ptr("  "), Phone: "+5511900001111"},
			"João"),
		Entry("placeholder full name is skipped",
			model.Subscriber{FullName: logger.Ptr("{{full_name}}"), FirstName: logger.Ptr("Ana"), Phone: "+5511900001111"},
			"Ana"),
		Entry("null literal is skipped",
			model.Subscriber{FullName: logger.Ptr("null"), Phone: "+5511900001111"},
			"Cliente 1111"),
		Entry("name field is not part of the chain",
			model.Subscriber{FullName: logger.Ptr(""), FirstName: logger.Ptr(""), LastName: logger.Ptr(""), Name: logger.Ptr("Joana"), Phone: "+5516997510930"},
			"Cliente 0930"),
		Entry("last name alone does not count",
			model.Subscriber{LastName: logger.Ptr("Souza"), Phone: "(11) 90000-2222"},
			"Cliente 2222"),
		Entry("short phone uses what it has",
			model.Subscriber{Phone: "12"},
			"Cliente 12"),
		Entry("nothing at all",
			model.Subscriber{},
			resolver.UnidentifiedLabel),
	)

	It("never returns an empty string", func() {
		for _, sub := range []model.Subscriber{
			{},
			{Phone: "abc"},
			{FullName: logger.Ptr(" "), FirstName: logger.Ptr("undefined")},
		} {
			Expect(resolver.ResolveName(sub)).NotTo(BeEmpty())
		}
	})
})
