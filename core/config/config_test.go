package config_test

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"eduops.app/relay/core/config"
)

func setenv(key, value string) {
	prev, had := os.LookupEnv(key)
	Expect(os.Setenv(key, value)).To(Succeed())
	DeferCleanup(func() {
		if had {
			_ = os.Setenv(key, prev)
		} else {
			_ = os.Unsetenv(key)
		}
	})
}

var _ = Describe("Config", func() {
	BeforeEach(func() {
		setenv("RELAY_ENV", "test")
		for _, key := range []string{"ACCOUNTS_FILE", "COMERCIAL_API_TOKEN", "SUPORTE_API_TOKEN"} {
			setenv(key, "")
			Expect(os.Unsetenv(key)).To(Succeed())
		}
	})

	Describe("ParseAccountsYAML", func() {
		It("decodes accounts and normalizes names", func() {
			accounts, err := config.ParseAccountsYAML([]byte(`
accounts:
  - name: " comercial "
    base_url: https://comercial.example.com/api
    api_token: tok-c
    departments: [Vendas, Matrículas]
  - name: SUPORTE
    base_url: https://suporte.example.com/api
    api_token: tok-s
    webhook_secret: s3cret
`))

			Expect(err).NotTo(HaveOccurred())
			Expect(accounts).To(HaveLen(2))
			Expect(accounts[0].Name).To(Equal("COMERCIAL"))
			Expect(accounts[0].Departments).To(Equal([]string{"Vendas", "Matrículas"}))
			Expect(accounts[1].WebhookSecret).To(Equal("s3cret"))
		})

		It("rejects invalid YAML", func() {
			_, err := config.ParseAccountsYAML([]byte("accounts: ["))

			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Load", func() {
		It("builds accounts from per-account environment variables", func() {
			setenv("COMERCIAL_API_TOKEN", "tok-c")
			setenv("COMERCIAL_API_URL", "https://comercial.example.com/api")
			setenv("COMERCIAL_DEPARTMENTS", "Vendas, Matrículas,")
			setenv("SYNC_POLL_INTERVAL", "45s")

			cfg, err := config.Load(config.ServiceTypeWorker)

			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Accounts).To(HaveLen(1))
			Expect(cfg.Accounts[0].Name).To(Equal("COMERCIAL"))
			Expect(cfg.Accounts[0].Departments).To(Equal([]string{"Vendas", "Matrículas"}))
			Expect(cfg.Sync.PollInterval).To(Equal(45 * time.Second))
			Expect(cfg.OTel.ServiceName).To(Equal("relay-worker"))
		})

		It("prefers the accounts file when set", func() {
			path := filepath.Join(GinkgoT().TempDir(), "accounts.yaml")
			Expect(os.WriteFile(path, []byte("accounts:\n  - name: suporte\n    base_url: https://s.example.com\n    api_token: t\n"), 0o600)).To(Succeed())
			setenv("ACCOUNTS_FILE", path)
			setenv("COMERCIAL_API_TOKEN", "ignored")

			cfg, err := config.Load(config.ServiceTypeServer)

			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Accounts).To(HaveLen(1))
			Expect(cfg.Accounts[0].Name).To(Equal("SUPORTE"))
		})

		It("fails when no account is configured", func() {
			_, err := config.Load(config.ServiceTypeServer)

			Expect(err).To(MatchError(ContainSubstring("no company accounts configured")))
		})

		It("falls back to defaults on unparseable values", func() {
			setenv("SUPORTE_API_TOKEN", "tok-s")
			setenv("REMOTE_RATE_PER_SEC", "fast")

			cfg, err := config.Load(config.ServiceTypeWorker)

			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Remote.RatePerSec).To(Equal(5.0))
			Expect(cfg.Webhook.MaxAttempts).To(Equal(int32(10)))
		})
	})
})
