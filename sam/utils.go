package sam

import (
	"crypto/md5"
	"encoding/binary"
	"encoding/hex"
	"image"
)

// normalizeAndPad 归一化和填充，左上角对齐
func normalizeAndPad(src image.Image, targetW, targetH int) []float32 {
	bounds := src.Bounds()
	w, h := min(bounds.Dx(), targetW), min(bounds.Dy(), targetH)
	data := make([]float32, 3*targetW*targetH)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := src.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			// RGBA returns 0-65535
			rf := float32(r) / 65535.0
			gf := float32(g) / 65535.0
			bf := float32(b) / 65535.0

			rf = (rf - MeanR) / StdR
			gf = (gf - MeanG) / StdG
			bf = (bf - MeanB) / StdB

			// 目标索引 (CHW)
			idx := y*targetW + x
			data[idx] = rf
			data[targetW*targetH+idx] = gf
			data[2*targetW*targetH+idx] = bf
		}
	}
	return data
}

// imageDigest 计算模型族 + 像素内容的 MD5
func imageDigest(kind Kind, img image.Image) string {
	hash := md5.New()
	hash.Write([]byte(kind.String()))

	bounds := img.Bounds()
	var buf [8]byte
	binary.LittleEndian.PutUint32(buf[:4], uint32(bounds.Dx()))
	binary.LittleEndian.PutUint32(buf[4:], uint32(bounds.Dy()))
	hash.Write(buf[:])

	row := make([]byte, 0, 3*bounds.Dx())
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		row = row[:0]
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			row = append(row, byte(r>>8), byte(g>>8), byte(b>>8))
		}
		hash.Write(row)
	}
	return hex.EncodeToString(hash.Sum(nil))
}
