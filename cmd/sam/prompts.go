package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/getcharzp/go-sam/sam"
	"gopkg.in/yaml.v3"
)

// defaultBox 未指定提示时使用的框
var defaultBox = [4]float32{215, 297, 643, 459}

// promptFile YAML 提示文件
//
//	prompts:
//	  - box: [215, 297, 643, 459]
//	  - points:
//	      - {x: 400, y: 380, label: 1}
//	      - {x: 300, y: 320, label: 0}
type promptFile struct {
	Prompts []struct {
		Points []struct {
			X     float32 `yaml:"x"`
			Y     float32 `yaml:"y"`
			Label int     `yaml:"label"`
		} `yaml:"points"`
		Box []float32 `yaml:"box"`
	} `yaml:"prompts"`
}

// loadPromptFile 读取 YAML 提示文件
func loadPromptFile(path string) ([]sam.Prompt, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取提示文件失败: %w", err)
	}
	var f promptFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("解析提示文件失败: %w", err)
	}

	prompts := make([]sam.Prompt, 0, len(f.Prompts))
	for i, item := range f.Prompts {
		p := sam.Prompt{}
		for _, pt := range item.Points {
			switch sam.Label(pt.Label) {
			case sam.LabelPositive:
				p = p.WithPositivePoint(pt.X, pt.Y)
			case sam.LabelNegative:
				p = p.WithNegativePoint(pt.X, pt.Y)
			default:
				return nil, fmt.Errorf("%w: prompt %d has label %d", sam.ErrUnsupportedPrompt, i, pt.Label)
			}
		}
		if len(item.Box) > 0 {
			if len(item.Box) != 4 {
				return nil, fmt.Errorf("%w: prompt %d box needs 4 values", sam.ErrUnsupportedPrompt, i)
			}
			p = p.WithBox(item.Box[0], item.Box[1], item.Box[2], item.Box[3])
		}
		prompts = append(prompts, p)
	}
	return prompts, nil
}

// flagPrompts 由命令行参数构造提示, 每个框一个提示, 点合并为一个提示
//
// 只有一个框时, 点与框合并为同一个提示。
func flagPrompts(boxes, points, negPoints []string) ([]sam.Prompt, error) {
	pointPrompt := sam.Prompt{}
	for _, s := range points {
		v, err := parseFloats(s, 2)
		if err != nil {
			return nil, fmt.Errorf("--point %q: %w", s, err)
		}
		pointPrompt = pointPrompt.WithPositivePoint(v[0], v[1])
	}
	for _, s := range negPoints {
		v, err := parseFloats(s, 2)
		if err != nil {
			return nil, fmt.Errorf("--neg-point %q: %w", s, err)
		}
		pointPrompt = pointPrompt.WithNegativePoint(v[0], v[1])
	}

	var prompts []sam.Prompt
	for _, s := range boxes {
		v, err := parseFloats(s, 4)
		if err != nil {
			return nil, fmt.Errorf("--box %q: %w", s, err)
		}
		base := sam.Prompt{}
		if len(boxes) == 1 {
			base = pointPrompt
		}
		prompts = append(prompts, base.WithBox(v[0], v[1], v[2], v[3]))
	}
	if pointPrompt.HasPoints() && len(boxes) != 1 {
		prompts = append(prompts, pointPrompt)
	}
	if len(prompts) == 0 {
		prompts = append(prompts, sam.Prompt{}.WithBox(defaultBox[0], defaultBox[1], defaultBox[2], defaultBox[3]))
	}
	return prompts, nil
}

// parseFloats 解析逗号分隔的 n 个数字
func parseFloats(s string, n int) ([]float32, error) {
	parts := strings.Split(s, ",")
	if len(parts) != n {
		return nil, fmt.Errorf("需要 %d 个数字, 实际 %d 个", n, len(parts))
	}
	out := make([]float32, n)
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 32)
		if err != nil {
			return nil, err
		}
		out[i] = float32(v)
	}
	return out, nil
}
