package config

type Config struct {
	AMQPURI string // пустое значение = публикация событий отключена
}
