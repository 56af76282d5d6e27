package cfg

type (
	App struct {
		Name    string
		Version string
	}

	Mysql struct {
		Host                  string
		Port                  string
		Username              string
		Password              string
		Database              string
		MaxIdleConnection     int
		MaxOpenConnection     int
		MaxLifeTimeConnection int
	}

	GithubApi struct {
		AccessToken       string
		ApiUrl            string
		WebUrl            string
		RawUrl            string
		RateLimitResetMin int
		RequestsPerSecond int
		TimeoutSec        int
	}

	Kafka struct {
		Enabled  bool
		Brokers  []string
		Producer KafkaProducer
	}

	KafkaProducer struct {
		TopicEntry string
	}

	Crawler struct {
		MaxFailures int
		PerPage     int
		ApiOnly     bool
	}
)

type Config struct {
	App       App
	Mysql     Mysql
	GithubApi GithubApi
	Kafka     Kafka
	Crawler   Crawler
}
