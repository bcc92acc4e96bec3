package util

import (
	"errors"
	"fmt"
	"math/big"
	"os"

	"github.com/cloudflare/cfssl/log"
	"github.com/shopspring/decimal"
)

// 原生货币精度
const EtherDecimals = 18

var ErrInvalidAmount = errors.New("invalid amount")

// 判断文件或文件夹是否存在
func FileExists(path string) bool {
	_, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false
		}
		log.Info(err)
		return false
	}
	return true
}

// 判断数组是否包含该元素
func Contains(arr []string, target string) bool {
	for _, a := range arr {
		if a == target {
			return true
		}
	}
	return false
}

// 将十进制字符串按精度转换为整数，例如 ParseUnits("1.5", 18)
func ParseUnits(s string, decimals int32) (*big.Int, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	scaled := d.Shift(decimals)
	if !scaled.IsInteger() {
		return nil, fmt.Errorf("%w: %q has more than %d decimals", ErrInvalidAmount, s, decimals)
	}
	return scaled.BigInt(), nil
}

// 将定点整数按精度格式化为十进制字符串
func FormatUnits(v *big.Int, decimals int32) string {
	if v == nil {
		return "0"
	}
	return decimal.NewFromBigInt(v, -decimals).String()
}

func ParseEther(s string) (*big.Int, error) {
	return ParseUnits(s, EtherDecimals)
}

// 测试和默认配置中使用的常量金额
func MustParseEther(s string) *big.Int {
	v, err := ParseEther(s)
	if err != nil {
		panic(err)
	}
	return v
}

func FormatEther(v *big.Int) string {
	return FormatUnits(v, EtherDecimals)
}

// 解析十进制整数字符串（wei）
func ParseBig(s string) (*big.Int, error) {
	if s == "" {
		return new(big.Int), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return v, nil
}
