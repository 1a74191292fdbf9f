package server

import "math/rand/v2"

// 昵称词库
var (
	nicknameAdjectives = []string{
		"倔强的", "憨厚的", "暴躁的", "悠闲的", "机灵的",
		"贪吃的", "淡定的", "犹豫的", "莽撞的", "狡猾的",
		"害羞的", "骄傲的", "迷糊的", "勤快的", "慵懒的",
	}

	nicknameNouns = []string{
		"小牛", "公牛", "牦牛", "水牛", "奶牛",
		"野牛", "斗牛", "犀牛", "蜗牛", "小牛犊",
		"牧童", "牛仔", "放牛娃", "老黄牛", "牛魔王",
	}
)

// GenerateNickname 生成随机昵称
func GenerateNickname() string {
	return nicknameAdjectives[rand.IntN(len(nicknameAdjectives))] +
		nicknameNouns[rand.IntN(len(nicknameNouns))]
}
