package store

import "github.com/skalra/auros/internal/model"

// DefaultCompanies is the curated starting list, inserted on first startup
// when the companies table is empty.
var DefaultCompanies = []model.Company{
	{ID: "stripe", Name: "Stripe", CareersURL: "https://stripe.com/jobs", Tier: 2, Enabled: true},
	{ID: "airbnb", Name: "Airbnb", CareersURL: "https://careers.airbnb.com/", Tier: 2, Enabled: true},
	{ID: "datadog", Name: "Datadog", CareersURL: "https://careers.datadoghq.com/", Tier: 2, Enabled: true},
	{ID: "atlassian", Name: "Atlassian", CareersURL: "https://www.atlassian.com/company/careers", Tier: 2, Enabled: true},
	{ID: "cloudflare", Name: "Cloudflare", CareersURL: "https://www.cloudflare.com/careers/jobs/", Tier: 2, Enabled: true},
	{ID: "gitlab", Name: "GitLab", CareersURL: "https://about.gitlab.com/jobs/all-jobs/", Tier: 2, Enabled: true},
	{ID: "hashicorp", Name: "HashiCorp", CareersURL: "https://www.hashicorp.com/careers", Tier: 2, Enabled: true},
	{ID: "workday", Name: "Workday", CareersURL: "https://workday.wd5.myworkdayjobs.com/Workday", Tier: 2, Enabled: true},
	{ID: "servicenow", Name: "ServiceNow", CareersURL: "https://careers.servicenow.com/", Tier: 2, Enabled: true},
	{ID: "snowflake", Name: "Snowflake", CareersURL: "https://careers.snowflake.com/", Tier: 2, Enabled: true},
}
