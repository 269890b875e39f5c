package main

import "github.com/zhouzirui/philo-chat/backend/cmd/philochat/cmd"

func main() {
	cmd.Execute()
}
