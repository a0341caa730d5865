package query

// ExampleCategory 一组示例问题
type ExampleCategory struct {
	Name      string   `json:"name"`
	Questions []string `json:"questions"`
}

// Examples 返回三类固定示例问题，顺序固定
func Examples() []ExampleCategory {
	return []ExampleCategory{
		{
			Name: "Simple Direct",
			Questions: []string{
				"What was Microsoft's total revenue in 2023?",
				"NVIDIA's data center revenue in 2024",
				"Google's operating margin 2022",
			},
		},
		{
			Name: "Comparative",
			Questions: []string{
				"How did NVIDIA's data center revenue grow from 2022 to 2023?",
				"Microsoft's revenue change between 2022 and 2024",
				"Google's profit growth from 2023 to 2024",
			},
		},
		{
			Name: "Cross-Company",
			Questions: []string{
				"Which company had the highest operating margin in 2023?",
				"Compare revenue across all three companies in 2024",
				"Who had the best profit margins in 2022?",
			},
		},
	}
}

// ExamplesByCategory 以 map 形式返回示例
func ExamplesByCategory() map[string][]string {
	cats := Examples()
	out := make(map[string][]string, len(cats))
	for _, c := range cats {
		out[c.Name] = append([]string(nil), c.Questions...)
	}
	return out
}
