package main

import "github.com/crater-detection/yolo-api/cmd"

func main() {
	cmd.Execute()
}
