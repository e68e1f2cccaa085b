package sam

import (
	"image"
	"sort"
)

// 8 邻域方向, 顺时针 (y 轴向下): E, SE, S, SW, W, NW, N, NE
var directions = [8]image.Point{
	{X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}, {X: -1, Y: 1},
	{X: -1, Y: 0}, {X: -1, Y: -1}, {X: 0, Y: -1}, {X: 1, Y: -1},
}

const dirWest = 4

// component 8 连通区域
type component struct {
	start image.Point // 光栅顺序的第一个像素
	area  int
}

// FindContours 提取二值 Mask 的外轮廓
//
// 每个 8 连通前景区域产生一个闭合多边形 (不含孔洞), 共线的顶点被合并,
// 结果按区域面积降序排列。全零 Mask 返回空切片。
func FindContours(mask *image.Gray) [][]image.Point {
	b := mask.Bounds()
	w, h := b.Dx(), b.Dy()
	fg := func(x, y int) bool {
		return x >= 0 && y >= 0 && x < w && y < h && mask.Pix[y*mask.Stride+x] != 0
	}

	components := labelComponents(w, h, fg)
	sort.SliceStable(components, func(i, j int) bool {
		return components[i].area > components[j].area
	})

	contours := make([][]image.Point, 0, len(components))
	for _, c := range components {
		contour := simplifyContour(traceBoundary(c.start, fg))
		for i := range contour {
			contour[i] = contour[i].Add(b.Min)
		}
		contours = append(contours, contour)
	}
	return contours
}

// labelComponents 标记 8 连通区域
func labelComponents(w, h int, fg func(x, y int) bool) []component {
	visited := make([]bool, w*h)
	var components []component
	var stack []image.Point

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if visited[y*w+x] || !fg(x, y) {
				continue
			}
			c := component{start: image.Pt(x, y)}
			visited[y*w+x] = true
			stack = append(stack[:0], c.start)
			for len(stack) > 0 {
				p := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				c.area++
				for _, d := range directions {
					n := p.Add(d)
					if fg(n.X, n.Y) && !visited[n.Y*w+n.X] {
						visited[n.Y*w+n.X] = true
						stack = append(stack, n)
					}
				}
			}
			components = append(components, c)
		}
	}
	return components
}

// traceBoundary Moore 邻域边界跟踪, 顺时针
//
// start 必须是区域在光栅顺序中的第一个像素, 它的西侧一定是背景。
func traceBoundary(start image.Point, fg func(x, y int) bool) []image.Point {
	contour := []image.Point{start}
	cur, back := start, dirWest
	var second image.Point
	started := false

	for {
		next, nd, found := image.Point{}, 0, false
		for i := 1; i <= 8; i++ {
			d := (back + i) % 8
			if p := cur.Add(directions[d]); fg(p.X, p.Y) {
				next, nd, found = p, d, true
				break
			}
		}
		if !found {
			// 孤立像素
			return contour
		}
		// Jacob 停止条件: 以相同方式再次离开起点
		if started && cur == start && next == second {
			break
		}
		if !started {
			second, started = next, true
		}
		contour = append(contour, next)

		// 最后一个被检查的背景像素作为新的回溯方向
		prev := cur.Add(directions[(nd+7)%8])
		back = directionOf(prev.Sub(next))
		cur = next
	}

	if n := len(contour); n > 1 && contour[n-1] == start {
		contour = contour[:n-1]
	}
	return contour
}

func directionOf(d image.Point) int {
	for i, dir := range directions {
		if dir == d {
			return i
		}
	}
	return dirWest
}

// simplifyContour 合并共线顶点
func simplifyContour(contour []image.Point) []image.Point {
	n := len(contour)
	if n < 3 {
		return contour
	}
	out := make([]image.Point, 0, n)
	for i, p := range contour {
		prev := contour[(i+n-1)%n]
		next := contour[(i+1)%n]
		if p.Sub(prev) == next.Sub(p) {
			continue
		}
		out = append(out, p)
	}
	if len(out) == 0 {
		return contour[:1]
	}
	return out
}
