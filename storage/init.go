package storage

import (
	"TrafficWatch/storage/database"
	"TrafficWatch/storage/redis"
)

// Init brings up the storage layer; connections are closed via Close.
func Init() error {
	if err := database.Init(); err != nil {
		return err
	}

	if err := redis.Init(); err != nil {
		return err
	}

	return nil
}
