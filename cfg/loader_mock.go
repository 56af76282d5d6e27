package cfg

type MockLoader struct{}

func NewMockLoader() (*MockLoader, error) {
	return &MockLoader{}, nil
}

func (yl *MockLoader) Load() (*Config, error) {
	return &Config{
		// App
		App: App{
			Name:    "github-cataloguer",
			Version: "0.0.1",
		},

		// Mysql
		Mysql: Mysql{
			Host:                  "127.0.0.1",
			Password:              "root",
			Username:              "root",
			Port:                  "3306",
			Database:              "github_catalog",
			MaxIdleConnection:     10,
			MaxOpenConnection:     100,
			MaxLifeTimeConnection: 3600,
		},

		// GithubApi
		GithubApi: GithubApi{
			AccessToken:       "",
			ApiUrl:            "https://api.github.com",
			WebUrl:            "https://github.com",
			RawUrl:            "https://raw.githubusercontent.com",
			RateLimitResetMin: 5,
			RequestsPerSecond: 10,
			TimeoutSec:        30,
		},

		// Kafka
		Kafka: Kafka{
			Enabled: false,
			Brokers: []string{"127.0.0.1:9092"},
			Producer: KafkaProducer{
				TopicEntry: "catalog-entries",
			},
		},

		// Crawler
		Crawler: Crawler{
			MaxFailures: 10,
			PerPage:     100,
			ApiOnly:     false,
		},
	}, nil
}
